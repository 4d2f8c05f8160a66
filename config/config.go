// Package config loads and validates acmed's TOML configuration and
// exposes it through an atomically-swappable Provider, grounded on the
// teacher's config.Provider (kept: atomic.Value pattern) and its
// BurntSushi/toml-based loader.
package config

// Global holds the defaults every endpoint/account/certificate falls back
// to (spec.md §6.3 "global").
type Global struct {
	RateLimit        RateLimit         `toml:"rate_limit"`
	RenewDelay       Duration          `toml:"renew_delay"`
	CertFileMode     uint32            `toml:"cert_file_mode"`
	PKFileMode       uint32            `toml:"pk_file_mode"`
	RootCertificates []string          `toml:"root_certificates"`
	Env              map[string]string `toml:"env"`
}

// RateLimit is a "N per time unit" token-bucket spec (spec.md §6.3
// endpoint[].rate_limits).
type RateLimit struct {
	Number   int      `toml:"number"`
	TimeUnit Duration `toml:"time_unit"`
}

// Endpoint is one ACME server acmed talks to.
type Endpoint struct {
	Name             string    `toml:"name"`
	URL              string    `toml:"url"`
	TOSAgreed        bool      `toml:"tos_agreed"`
	RateLimits       RateLimit `toml:"rate_limits"`
	RootCertificates []string  `toml:"root_certificates"`
}

// ExternalAccount carries RFC 8555 §7.3.4 external-account-binding
// credentials for one account.
type ExternalAccount struct {
	Identifier         string `toml:"identifier"`
	Key                string `toml:"key"` // base64url-encoded MAC key
	SignatureAlgorithm string `toml:"signature_algorithm"`
}

// Account is one ACME account, potentially bound on several endpoints.
type Account struct {
	Name               string            `toml:"name"`
	Contacts           []string          `toml:"contacts"`
	KeyType            string            `toml:"key_type"`
	SignatureAlgorithm string            `toml:"signature_algorithm"`
	ExternalAccount    *ExternalAccount  `toml:"external_account"`
	Hooks              []string          `toml:"hooks"`
	Env                map[string]string `toml:"env"`
}

// Identifier is one certificate SAN, either a DNS name or an IP literal,
// with the challenge type that will be used to prove it.
type Identifier struct {
	Type      string `toml:"type"` // "dns" or "ip"
	Value     string `toml:"value"`
	Challenge string `toml:"challenge"` // "http-01", "dns-01", "tls-alpn-01"
}

// SubjectAttributes mirrors crypto.SubjectAttrs's configurable fields.
type SubjectAttributes struct {
	CommonName          string `toml:"common_name"`
	Organization        string `toml:"organization"`
	OrganizationalUnit  string `toml:"organizational_unit"`
	Country             string `toml:"country"`
	Locality            string `toml:"locality"`
	Province            string `toml:"province"`
	StreetAddress       string `toml:"street_address"`
	PostalCode          string `toml:"postal_code"`
	PostalAddress       string `toml:"postal_address"`
	SerialNumber        string `toml:"serial_number"`
	EmailAddress        string `toml:"email_address"`
	GivenName           string `toml:"given_name"`
	Surname             string `toml:"surname"`
	Initials            string `toml:"initials"`
	Title               string `toml:"title"`
	GenerationQualifier string `toml:"generation_qualifier"`
	DNQualifier         string `toml:"dn_qualifier"`
	UserID              string `toml:"user_id"`
	Name                string `toml:"name"`
}

// Certificate is one managed certificate request record (spec.md §3
// "Certificate request record").
type Certificate struct {
	Name                   string            `toml:"name"`
	Endpoint               string            `toml:"endpoint"`
	Account                string            `toml:"account"`
	Identifiers            []Identifier      `toml:"identifiers"`
	KeyType                string            `toml:"key_type"`
	CSRDigest              string            `toml:"csr_digest"`
	RenewDelay             Duration          `toml:"renew_delay"`
	KPReuse                bool              `toml:"kp_reuse"`
	SubjectAttributes      SubjectAttributes `toml:"subject_attributes"`
	SubjectAttributeDigest string            `toml:"subject_attribute_digest"`
	Directory              string            `toml:"directory"`
	NameFormat             string            `toml:"name_format"`
	KeyFileNameFormat      string            `toml:"key_file_name_format"`
	Hooks                  []string          `toml:"hooks"`
	Env                    map[string]string `toml:"env"`
}

// Hook is one configured external command (spec.md §6.3 "hook[]").
type Hook struct {
	Name         string            `toml:"name"`
	Type         []string          `toml:"type"`
	Cmd          string            `toml:"cmd"`
	Args         []string          `toml:"args"`
	Stdin        string            `toml:"stdin"`
	StdinStr     string            `toml:"stdin_str"`
	Stdout       string            `toml:"stdout"`
	AllowFailure bool              `toml:"allow_failure"`
}

// Group names an ordered list of hook or group names.
type Group struct {
	Name  string   `toml:"name"`
	Hooks []string `toml:"hooks"`
}

// Include is one include-by-glob directive (spec.md §6.3 "include[]").
type Include struct {
	Globs []string `toml:"globs"`
}

// Config is acmed's fully-merged, validated configuration.
type Config struct {
	Global       Global        `toml:"global"`
	Endpoints    []Endpoint    `toml:"endpoint"`
	Accounts     []Account     `toml:"account"`
	Certificates []Certificate `toml:"certificate"`
	Hooks        []Hook        `toml:"hook"`
	Groups       []Group       `toml:"group"`
	Includes     []Include     `toml:"include"`
}
