// Package location resolves best-effort geographic context: where this host
// sits (via ip-api.com) and where the sending phone number is registered
// (via libphonenumber metadata). A country mismatch between the two is a weak
// phishing signal the message stage folds into its analysis.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/httputil"
)

// hostLookupURL is the free ip-api.com self-lookup endpoint.
const hostLookupURL = "http://ip-api.com/json/"

// Resolver implements detection.LocationProvider.
type Resolver struct {
	client  *http.Client
	baseURL string
}

// NewResolver returns a resolver using the fast-tier HTTP client.
func NewResolver() *Resolver {
	return &Resolver{client: httputil.FastClient(), baseURL: hostLookupURL}
}

// NewResolverWithURL overrides the geolocation endpoint, for tests.
func NewResolverWithURL(baseURL string) *Resolver {
	return &Resolver{client: httputil.FastClient(), baseURL: baseURL}
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Query   string `json:"query"` // resolved IP
	Message string `json:"message"`
}

// Lookup gathers sender and host location context. Partial results are
// normal: an unparseable alphanumeric sender ID still yields host data, and a
// dead geolocation service still yields phone data.
func (r *Resolver) Lookup(ctx context.Context, sender string) (*detection.LocationInfo, error) {
	info := &detection.LocationInfo{}

	if phone := r.phoneInfo(sender); phone != nil {
		info.SenderCountry = phone.Country
		info.SenderCarrier = phone.Carrier
		info.NumberType = phone.NumberType
		info.SenderValid = phone.Valid
	}

	if err := r.hostInfo(ctx, info); err != nil {
		log.Printf("[Location] host lookup failed: %v", err)
	}

	if info.SenderCountry != "" && info.HostCountry != "" &&
		!strings.EqualFold(info.SenderCountry, info.HostCountry) {
		info.Mismatch = true
	}
	return info, nil
}

// PhoneInfo is the parsed sender number metadata.
type PhoneInfo struct {
	Country    string
	Carrier    string
	NumberType string
	Valid      bool
	Formatted  string
}

// phoneInfo parses the sender as an international phone number. Alphanumeric
// sender IDs ("DBS-Alert") are not numbers; those return nil.
func (r *Resolver) phoneInfo(sender string) *PhoneInfo {
	num, err := phonenumbers.Parse(sender, "")
	if err != nil {
		if strings.HasPrefix(sender, "+") {
			return nil
		}
		// Numbers sometimes arrive without the plus.
		num, err = phonenumbers.Parse("+"+sender, "")
		if err != nil {
			return nil
		}
	}

	carrier, _ := phonenumbers.GetCarrierForNumber(num, "en")
	return &PhoneInfo{
		Country:    countryName(phonenumbers.GetRegionCodeForNumber(num)),
		Carrier:    carrier,
		NumberType: numberTypeName(phonenumbers.GetNumberType(num)),
		Valid:      phonenumbers.IsValidNumber(num),
		Formatted:  phonenumbers.Format(num, phonenumbers.INTERNATIONAL),
	}
}

// countryName turns an ISO region code ("US") into the English country name
// ("United States"), matching how ip-api.com names the host country so the
// two sides of the mismatch comparison speak the same vocabulary.
func countryName(regionCode string) string {
	if regionCode == "" || regionCode == "ZZ" {
		return ""
	}
	region, err := language.ParseRegion(regionCode)
	if err != nil {
		return regionCode
	}
	return display.English.Regions().Name(region)
}

func numberTypeName(t phonenumbers.PhoneNumberType) string {
	switch t {
	case phonenumbers.FIXED_LINE:
		return "FIXED_LINE"
	case phonenumbers.MOBILE:
		return "MOBILE"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "FIXED_LINE_OR_MOBILE"
	case phonenumbers.TOLL_FREE:
		return "TOLL_FREE"
	case phonenumbers.PREMIUM_RATE:
		return "PREMIUM_RATE"
	case phonenumbers.SHARED_COST:
		return "SHARED_COST"
	case phonenumbers.VOIP:
		return "VOIP"
	case phonenumbers.PERSONAL_NUMBER:
		return "PERSONAL_NUMBER"
	case phonenumbers.PAGER:
		return "PAGER"
	case phonenumbers.UAN:
		return "UAN"
	case phonenumbers.VOICEMAIL:
		return "VOICEMAIL"
	default:
		return "UNKNOWN"
	}
}

func (r *Resolver) hostInfo(ctx context.Context, info *detection.LocationInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("location: ip-api status %d", resp.StatusCode)
	}
	var parsed ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if parsed.Status != "success" {
		return fmt.Errorf("location: ip-api error: %s", parsed.Message)
	}

	info.HostIP = parsed.Query
	info.HostCountry = parsed.Country
	info.HostCity = parsed.City
	info.HostISP = parsed.ISP
	return nil
}
