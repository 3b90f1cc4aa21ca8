package estimators

import (
	"testing"

	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"

	"infodyn/adapters/estimators/gaussian"
)

func TestNewGaussianCalculators(t *testing.T) {
	cases := []struct {
		m        measure.Measure
		wantName string
	}{
		{measure.MutualInformation, "gaussian_mi"},
		{measure.TransferEntropy, "gaussian_te"},
		{measure.ConditionalTransferEntropy, "gaussian_cte"},
	}
	for _, tc := range cases {
		calc, err := New(KindGaussian, tc.m, embedding.Default(2), gaussian.DefaultOptions())
		if err != nil {
			t.Fatalf("New(gaussian, %s): %v", tc.m, err)
		}
		if calc.Name() != tc.wantName {
			t.Errorf("Name = %q, want %q", calc.Name(), tc.wantName)
		}
		if calc.Measure() != tc.m {
			t.Errorf("Measure = %q, want %q", calc.Measure(), tc.m)
		}
	}
}

func TestNewRecognizedButUnimplementedFamily(t *testing.T) {
	for _, kind := range []Kind{KindKernel, KindKSG, KindSymbolic} {
		_, err := New(kind, measure.TransferEntropy, embedding.Default(2), gaussian.DefaultOptions())
		if !core.IsConfigurationError(err) {
			t.Errorf("New(%s): got %v, want configuration error", kind, err)
		}
	}
}

func TestNewUnknownFamily(t *testing.T) {
	_, err := New(Kind("granger"), measure.TransferEntropy, embedding.Default(2), gaussian.DefaultOptions())
	if !core.IsConfigurationError(err) {
		t.Fatalf("got %v, want configuration error", err)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("gaussian")
	if err != nil || k != KindGaussian {
		t.Errorf("ParseKind(gaussian) = (%v, %v)", k, err)
	}
	if _, err := ParseKind("wavelet"); !core.IsConfigurationError(err) {
		t.Errorf("ParseKind(wavelet): got %v, want configuration error", err)
	}
}

func TestFactoryPropagatesSpecValidation(t *testing.T) {
	bad := embedding.Default(0)
	_, err := New(KindGaussian, measure.TransferEntropy, bad, gaussian.DefaultOptions())
	if !core.IsConfigurationError(err) {
		t.Fatalf("got %v, want configuration error for k=0", err)
	}
}
