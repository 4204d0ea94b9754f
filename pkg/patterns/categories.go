package patterns

// Pattern definitions per category. Severities reflect how strongly a single
// match should move a stage's heuristic score; multiple matches accumulate
// and are capped by the stage's point budget, never here.

func (r *Registry) registerUrgencyPatterns() {
	r.register("act_immediately",
		`(?i)\b(act|respond|verify|confirm|update|click)\s+(now|immediately|within\s+\d+\s+(hours?|minutes?|days?)|today|asap)\b`,
		CategoryUrgency, 20,
		"Pressure to act on a short deadline")

	r.register("urgent_marker",
		`(?i)\b(urgent|immediate\s+action|final\s+(notice|warning|reminder)|last\s+chance|expires?\s+(today|soon|in))\b`,
		CategoryUrgency, 20,
		"Urgency keywords typical of smishing campaigns")

	r.register("limited_time",
		`(?i)\b(limited\s+time|before\s+it'?s\s+too\s+late|don'?t\s+miss|offer\s+ends)\b`,
		CategoryUrgency, 10,
		"Artificial scarcity language")
}

func (r *Registry) registerCredentialBaitPatterns() {
	r.register("credential_request",
		`(?i)\b(confirm|verify|update|re-?enter|validate)\s+(your\s+)?(password|pin|card|account|identity|banking\s+details|payment\s+(details|info|method))\b`,
		CategoryCredentialBait, 30,
		"Request to confirm or re-enter credentials or payment data")

	r.register("login_link",
		`(?i)\b(log\s*in|sign\s*in|login)\s+(here|now|to\s+(verify|confirm|unlock|secure))\b`,
		CategoryCredentialBait, 20,
		"Login prompt pointing at an embedded link")

	r.register("ssn_or_card",
		`(?i)\b(social\s+security|ssn|cvv|card\s+number|security\s+code)\b`,
		CategoryCredentialBait, 30,
		"Direct reference to high-value personal identifiers")
}

func (r *Registry) registerOTPLurePatterns() {
	r.register("otp_share",
		`(?i)\b(share|send|reply\s+with|provide|give\s+us)\s+((the|your|us\s+your)\s+)?(otp|one[\s-]?time\s+(password|passcode|pin)|verification\s+code)\b`,
		CategoryOTPLure, 35,
		"Request to hand over a one-time passcode - never legitimate")

	r.register("otp_mention",
		`(?i)\b(otp|one[\s-]?time\s+(password|passcode)|2fa\s+code|verification\s+code)\b`,
		CategoryOTPLure, 10,
		"Mentions a one-time code; suspicious alongside a link or callback number")
}

func (r *Registry) registerPrizeBaitPatterns() {
	r.register("prize_winner",
		`(?i)\b(congratulations?|you\s+(have\s+)?won|winner|claim\s+your\s+(prize|reward|gift))\b`,
		CategoryPrizeBait, 25,
		"Unsolicited prize or lottery notification")

	r.register("refund_bait",
		`(?i)\b(refund|rebate|cash\s*back|overpaid|reimbursement)\s+(of\s+)?[\$£€]?\d+`,
		CategoryPrizeBait, 20,
		"Unexpected refund with an amount, a common smishing hook")

	r.register("free_offer",
		`(?i)\b(free\s+(gift|iphone|voucher|bonus)|no\s+cost|risk[\s-]?free)\b`,
		CategoryPrizeBait, 15,
		"Too-good-to-be-true giveaway")
}

func (r *Registry) registerThreatPatterns() {
	r.register("account_suspension",
		`(?i)\b(account|card|access)\s+(will\s+be\s+|has\s+been\s+|is\s+)?(suspend|lock|block|deactivat|restrict|clos)\w*\b`,
		CategoryThreat, 25,
		"Threat of account suspension or lockout")

	r.register("unusual_activity",
		`(?i)\b(unusual|suspicious|unauthoriz)\w*\s+(activity|login|sign[\s-]?in|transaction|attempt)\b`,
		CategoryThreat, 20,
		"Claimed suspicious activity to provoke a panicked click")

	r.register("legal_threat",
		`(?i)\b(legal\s+action|prosecut|arrest\s+warrant|court\s+(notice|summons)|penalt(y|ies)|fine\s+of)\b`,
		CategoryThreat, 25,
		"Legal or enforcement threat")

	r.register("delivery_problem",
		`(?i)\b(package|parcel|delivery|shipment)\s+.{0,30}(held|pending|failed|unpaid|customs|fee)\b`,
		CategoryThreat, 20,
		"Fake delivery problem requiring a payment or address confirmation")
}

func (r *Registry) registerSuspiciousURLPatterns() {
	r.register("ip_in_host",
		`^https?://(?:\d{1,3}\.){3}\d{1,3}(?:[:/]|$)`,
		CategorySuspiciousURL, 30,
		"Raw IP address instead of a hostname")

	r.register("at_sign_in_url",
		`^https?://[^/\s]*@`,
		CategorySuspiciousURL, 30,
		"Userinfo trick hiding the real host behind an @")

	r.register("punycode_host",
		`^https?://[^/\s]*xn--`,
		CategorySuspiciousURL, 20,
		"Punycode hostname, often used for homoglyph domains")

	r.register("suspicious_tld",
		`(?i)^https?://[^/\s]+\.(tk|ml|ga|cf|gq|top|zip|link|click|rest|icu)(?:[:/]|$)`,
		CategorySuspiciousURL, 15,
		"Free or abuse-heavy top-level domain")

	r.register("brand_in_subdomain",
		`(?i)^https?://[^/\s]*(paypal|apple|amazon|netflix|microsoft|google|bank)[^/\s]*\.[^/\s]+\.[a-z]{2,}`,
		CategorySuspiciousURL, 25,
		"Well-known brand embedded in a subdomain of an unrelated site")
}

func (r *Registry) registerSuspiciousJSPatterns() {
	// High risk: code execution and obfuscation primitives
	r.register("js_eval", `eval\s*\(`, CategorySuspiciousJS, 30, "Dynamic code execution")
	r.register("js_atob", `atob\s*\(`, CategorySuspiciousJS, 25, "Base64 decode, common payload obfuscation")
	r.register("js_fromcharcode", `fromCharCode`, CategorySuspiciousJS, 25, "Character-code string building")
	r.register("js_unescape", `unescape\s*\(`, CategorySuspiciousJS, 25, "Legacy decoding used for obfuscation")

	// Medium risk: DOM and navigation manipulation
	r.register("js_document_write", `document\.write\s*\(`, CategorySuspiciousJS, 15, "Direct DOM injection")
	r.register("js_cookie", `document\.cookie|\.cookie\b`, CategorySuspiciousJS, 15, "Cookie access")
	r.register("js_location_redirect", `(window|document)\.location|location\.href\s*=`, CategorySuspiciousJS, 15, "Scripted redirect")
	r.register("js_onerror", `\bonerror\s*=`, CategorySuspiciousJS, 10, "Error-handler abuse")
}
