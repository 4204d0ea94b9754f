package stages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
)

func TestMetadataStageSkipsWithoutURL(t *testing.T) {
	s := NewMetadataStage(nil, config.NewDefaultConfig())
	dc := newDetectionContext(t, "+6591234567", "no links")

	if out := s.Analyze(context.Background(), dc); !out.Skipped {
		t.Errorf("outcome = %+v, want skipped", out)
	}
}

func TestMetadataStageExtractFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "nginx/1.24")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := NewMetadataStage(nil, config.NewDefaultConfig())
	s.client = srv.Client()
	f, err := s.extractFeatures(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	if f.StatusCode != http.StatusOK {
		t.Errorf("status = %d", f.StatusCode)
	}
	if f.Server != "nginx/1.24" {
		t.Errorf("server = %q", f.Server)
	}
	if !f.HasHSTS || !f.HasXFO {
		t.Errorf("security headers: %+v", f)
	}
	if f.HasCSP || f.HasXCTO {
		t.Errorf("unset headers reported present: %+v", f)
	}
}

func TestMetadataStageFetchFailureDegrades(t *testing.T) {
	s := NewMetadataStage(nil, config.NewDefaultConfig())
	s.client = &http.Client{Transport: errTransport{}}
	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, "http://unreachable.invalid/")

	out := s.Analyze(context.Background(), dc)
	if out.Details["degraded"] != true || out.Verdict != detection.VerdictUncertain {
		t.Errorf("outcome = %+v", out)
	}
}

func TestMetadataStageHeuristic(t *testing.T) {
	s := NewMetadataStage(nil, config.NewDefaultConfig())

	tests := []struct {
		name     string
		features llm.MetadataFeatures
		want     detection.Verdict
	}{
		{
			name:     "hardened https site",
			features: llm.MetadataFeatures{IsHTTPS: true, StatusCode: 200, HasHSTS: true, HasCSP: true, HasXFO: true, HasXCTO: true},
			want:     detection.VerdictSafe,
		},
		{
			name:     "missing headers only",
			features: llm.MetadataFeatures{IsHTTPS: true, StatusCode: 200},
			want:     detection.VerdictUncertain,
		},
		{
			name:     "bare http with odd status",
			features: llm.MetadataFeatures{IsHTTPS: false, StatusCode: 503},
			want:     detection.VerdictPhishing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := s.heuristic(tt.features); out.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s", out.Verdict, tt.want)
			}
		})
	}
}
