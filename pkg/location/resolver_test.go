package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPhoneInfo(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name        string
		sender      string
		wantNil     bool
		wantValid   bool
		wantCountry string
	}{
		{"US number", "+14155552671", false, true, "United States"},
		{"UK number", "+442071234567", false, true, "United Kingdom"},
		{"missing plus prefix", "14155552671", false, true, "United States"},
		{"alphanumeric sender ID", "DBS-Alert", true, false, ""},
		{"garbage", "+++", true, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := r.phoneInfo(tt.sender)
			if tt.wantNil {
				if info != nil {
					t.Fatalf("phoneInfo(%q) = %+v, want nil", tt.sender, info)
				}
				return
			}
			if info == nil {
				t.Fatalf("phoneInfo(%q) = nil", tt.sender)
			}
			if info.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", info.Valid, tt.wantValid)
			}
			if tt.wantCountry != "" && info.Country != tt.wantCountry {
				t.Errorf("country = %q, want %q", info.Country, tt.wantCountry)
			}
		})
	}
}

func TestLookupMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","country":"Singapore","city":"Singapore","isp":"TestNet","query":"203.0.113.7"}`))
	}))
	defer srv.Close()

	r := NewResolverWithURL(srv.URL)
	info, err := r.Lookup(context.Background(), "+14155552671")
	if err != nil {
		t.Fatal(err)
	}
	if info.HostCountry != "Singapore" || info.HostIP != "203.0.113.7" {
		t.Errorf("host info = %+v", info)
	}
	if !info.Mismatch {
		t.Error("expected mismatch between US sender and Singapore host")
	}
}

func TestCountryName(t *testing.T) {
	tests := []struct {
		region string
		want   string
	}{
		{"US", "United States"},
		{"GB", "United Kingdom"},
		{"SG", "Singapore"},
		{"ZZ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := countryName(tt.region); got != tt.want {
			t.Errorf("countryName(%q) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestLookupSameCountryNoMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","country":"United States","city":"San Francisco","isp":"TestNet","query":"203.0.113.7"}`))
	}))
	defer srv.Close()

	r := NewResolverWithURL(srv.URL)
	info, err := r.Lookup(context.Background(), "+14155552671")
	if err != nil {
		t.Fatal(err)
	}
	if info.SenderCountry != "United States" {
		t.Errorf("sender country = %q, want %q", info.SenderCountry, "United States")
	}
	if info.Mismatch {
		t.Error("US sender with US host flagged as mismatch")
	}
}

func TestLookupHostFailureStillReturnsPhoneData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	r := NewResolverWithURL(srv.URL)
	info, err := r.Lookup(context.Background(), "+14155552671")
	if err != nil {
		t.Fatal(err)
	}
	if info.SenderCountry == "" {
		t.Error("expected sender country despite host lookup failure")
	}
	if info.HostCountry != "" || info.Mismatch {
		t.Errorf("unexpected host data: %+v", info)
	}
}
