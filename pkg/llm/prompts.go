package llm

import (
	"fmt"
	"strings"
)

// responseFormat is appended to every stage prompt so the parser can rely on
// a uniform layout regardless of model.
const responseFormat = `Provide your analysis in this exact format:
Verdict: safe/phishing/uncertain
Confidence: <0.0-1.0>
Reasoning: <brief explanation>
If the confidence score is under 0.4 for phishing or safe then return uncertain with reasoning.
The reasoning should summarize the key factors that influenced your decision, maximum one paragraph. The output should only contain the requested fields, no additional text.`

// SystemPrompt is the shared classifier persona.
const SystemPrompt = "You are a cybersecurity expert specialized in phishing detection."

// MessagePrompt builds the prompt for the message-text stage. The strict
// policy deliberately treats every actionable entity in an unsolicited SMS as
// a potential point of scam.
func MessagePrompt(sender, text string, urls []string) string {
	urlList := "none"
	if len(urls) > 0 {
		urlList = strings.Join(urls, ", ")
	}
	return fmt.Sprintf(`You are an expert system designed to identify scams in SMS messages. A point of scam is any specific entity, resource, or element the recipient is directed to interact with, which could lead to fraud, financial loss, or security compromise.

Strict Policy
All entities in promotional, unsolicited, or unknown SMS messages (numbers, links, apps, accounts, websites, customer centers, etc.) must be flagged as points of scam, regardless of whether they belong to legitimate companies.

Input:
SMS Sender: %s
SMS Text: %s
URLs Found: %s

Analysis Framework:
Extract ALL entities/resources mentioned (numbers, links, apps, accounts, websites, service centers).
If ANY entity is present in a promotional/unsolicited/unknown SMS, flag it as a point of scam.
Check for trust exploitation: impersonation, urgency, emotional triggers, security bypass.
Recognize deceptive patterns: generic greetings, grammar errors, too-good-to-be-true offers.

%s`, sender, text, urlList, responseFormat)
}

// URLFeatures is the structural evidence the URL stage hands to the model.
type URLFeatures struct {
	URL           string
	Domain        string
	Subdomain     string
	Path          string
	IsHTTPS       bool
	URLLength     int
	HasIPInDomain bool
	DotCount      int
	SpecialChars  int
	WasShortened  bool
	DomainAgeDays int
	RegistrarURL  string
	NameServers   string
	DNSSEC        string
	Country       string
	Status        string
}

// URLPrompt builds the prompt for the URL structure stage. Indicator order
// matters: the model weights earlier indicators more heavily.
func URLPrompt(f URLFeatures) string {
	return fmt.Sprintf(`Analyze this URL for phishing indicators.

URL: %s
Domain: %s
Subdomain: %s
Path: %s
Uses HTTPS: %v
URL Length: %d
Has IP Address: %v
Number of Dots in Domain: %d
Special Characters: %d
Was URL Shortened: %v
Domain Age (Days): %d
Registrar URL: %s
Name Servers: %s
DNSSEC: %s
Registrant Country: %s
Status: %s

Check for:
1. Typosquatting or misspelled legitimate domains
2. Suspicious subdomains
3. IP addresses in URLs
4. Newly registered domains or suspicious registrars (domain age less than 6 months)
5. Lack of HTTPS
6. URL shorteners (increases risk as they hide destination)
7. Suspicious special characters
8. Abnormal domain status or DNSSEC configuration
9. Excessive URL length

Weight your confidence by the order of the indicators above; higher-ranked indicators count more. If a legitimate domain is present and you still suspect phishing, use a mild confidence score.

%s`, f.URL, f.Domain, f.Subdomain, f.Path, f.IsHTTPS, f.URLLength, f.HasIPInDomain,
		f.DotCount, f.SpecialChars, f.WasShortened, f.DomainAgeDays, f.RegistrarURL,
		f.NameServers, f.DNSSEC, f.Country, f.Status, responseFormat)
}

// ContentFeatures is the page evidence the content stage hands to the model.
type ContentFeatures struct {
	URL            string
	Title          string
	FormCount      int
	PasswordFields int
	InputFields    int
	ExternalLinks  int
	HasContactInfo bool
	TextSample     string
}

// ContentPrompt builds the prompt for the page content stage.
func ContentPrompt(f ContentFeatures) string {
	sample := f.TextSample
	if len(sample) > 500 {
		sample = sample[:500]
	}
	return fmt.Sprintf(`Analyze this website content for phishing indicators.

URL: %s
Page Title: %s
Number of Forms: %d
Password Fields: %d
Input Fields: %d
External Links: %d
Has Contact Info: %v
Text Sample: %s

Check for:
1. Suspicious forms requesting sensitive data
2. Poor grammar and spelling
3. Missing or fake contact information
4. Urgency or threatening language
5. Suspicious external links
6. Requests for passwords or financial info

%s`, f.URL, f.Title, f.FormCount, f.PasswordFields, f.InputFields,
		f.ExternalLinks, f.HasContactInfo, sample, responseFormat)
}

// MetadataFeatures is the header evidence the metadata stage hands to the model.
type MetadataFeatures struct {
	URL         string
	StatusCode  int
	Server      string
	ContentType string
	IsHTTPS     bool
	HasHSTS     bool
	HasCSP      bool
	HasXFO      bool
	HasXCTO     bool
}

// MetadataPrompt builds the prompt for the HTTP metadata stage.
func MetadataPrompt(f MetadataFeatures) string {
	return fmt.Sprintf(`Analyze this website's HTTP headers and metadata for phishing indicators.

URL: %s
Status Code: %d
Server: %s
Content-Type: %s
Has HTTPS: %v
Has Security Headers:
  - Strict-Transport-Security: %v
  - Content-Security-Policy: %v
  - X-Frame-Options: %v
  - X-Content-Type-Options: %v

Check for:
1. Missing security headers
2. Suspicious server information
3. Unusual status codes or redirects
4. Lack of HTTPS
5. Unusual content types

%s`, f.URL, f.StatusCode, f.Server, f.ContentType, f.IsHTTPS,
		f.HasHSTS, f.HasCSP, f.HasXFO, f.HasXCTO, responseFormat)
}

// BehaviorFeatures is the runtime evidence the behavior stage hands to the model.
type BehaviorFeatures struct {
	URL               string
	FinalURL          string
	RedirectCount     int
	BackgroundCount   int
	SuspiciousDomains []string
	HasAlerts         bool
	HasDownloads      bool
}

// BehaviorPrompt builds the prompt for the dynamic behavior stage.
func BehaviorPrompt(f BehaviorFeatures) string {
	suspicious := "none"
	if len(f.SuspiciousDomains) > 0 {
		suspicious = strings.Join(f.SuspiciousDomains, ", ")
	}
	return fmt.Sprintf(`Analyze this website's behavior for phishing indicators.

URL: %s
Final URL After Load: %s
Redirects Detected: %d
Background Requests: %d
Suspicious Domains in Requests: %s
JavaScript Alerts: %v
Auto-Downloads: %v

Check for:
1. Unexpected redirects to different domains
2. Multiple background requests to suspicious domains
3. Automatic downloads
4. JavaScript alerts or pop-ups
5. Attempts to collect data without user interaction

%s`, f.URL, f.FinalURL, f.RedirectCount, f.BackgroundCount, suspicious,
		f.HasAlerts, f.HasDownloads, responseFormat)
}
