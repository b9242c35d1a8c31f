package batch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
)

// MaxNewURLLength is the longest new URL a mapping column can hold
const MaxNewURLLength = 64*1024 - 1

// User facing validation messages
const (
	MsgBlank            = "can't be blank"
	MsgNotIncluded      = "is not included in the list"
	MsgPathsEmpty       = "Enter at least one valid path"
	MsgPathsNotForSite  = "One or more of the URLs entered are not part of this site"
	MsgRawCSVEmpty      = "Enter at least one valid line"
	MsgRawCSVInvalid    = "could not be read as CSV"
	MsgNewURLInvalid    = "Enter a valid URL to redirect to"
	MsgNewURLTooLong    = "is too long (maximum is 65535 characters)"
	msgNewURLNotAllowed = "The URL to redirect to must be on a whitelisted domain. Contact %s for more information."
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Errors collects validation messages keyed by field name
type Errors map[string][]string

// Add appends msg to field unless it is already there
func (e Errors) Add(field, msg string) {
	for _, m := range e[field] {
		if m == msg {
			return
		}
	}
	e[field] = append(e[field], msg)
}

// Empty reports whether no field has messages
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Error lets a set of messages travel as an error value
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Normalize fills derived fields before validation: the HTTP status from the type and an
// https scheme for a new URL given without one. Tags are trimmed and deduplicated.
func Normalize(b *Batch) {
	if b.Kind == "" {
		b.Kind = db.KindUniform
	}
	if b.State == "" {
		b.State = db.StatePending
	}
	b.TagList = normalizeTags(b.TagList)

	if b.PerRow() {
		return
	}
	b.Type = strings.TrimSpace(b.Type)
	if b.HTTPStatus == "" {
		switch b.Type {
		case db.TypeRedirect:
			b.HTTPStatus = db.StatusMovedPermanently
		case db.TypeArchive:
			b.HTTPStatus = db.StatusGone
		}
	}
	b.NewURL = DefaultScheme(b.NewURL)
}

// DefaultScheme prefixes https:// to a non-blank URL that has no scheme
func DefaultScheme(newURL string) string {
	newURL = strings.TrimSpace(newURL)
	if newURL == "" || schemePattern.MatchString(newURL) {
		return newURL
	}
	return "https://" + newURL
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Validator checks a normalized batch before it is stored
type Validator struct {
	// AllowedHosts lists domains redirects may point at; subdomains match too
	AllowedHosts []string
	SupportEmail string
}

// NewValidator creates a validator for the given redirect allow-list
func NewValidator(allowedHosts []string, supportEmail string) *Validator {
	return &Validator{AllowedHosts: allowedHosts, SupportEmail: supportEmail}
}

// Validate returns every problem found with b. A nil or empty result means b is valid.
func (v *Validator) Validate(b *Batch) Errors {
	errs := Errors{}

	if b.UserID == 0 && b.User == nil {
		errs.Add("user", MsgBlank)
	}
	if b.Site == nil {
		errs.Add("site", MsgBlank)
	}
	if !b.PerRow() {
		if b.Type != db.TypeRedirect && b.Type != db.TypeArchive {
			errs.Add("type", MsgNotIncluded)
		}
		if b.HTTPStatus != db.StatusMovedPermanently && b.HTTPStatus != db.StatusGone {
			errs.Add("http_status", MsgNotIncluded)
		}
	}
	switch b.State {
	case db.StatePending, db.StateSucceeded, db.StateFailed:
	default:
		errs.Add("state", MsgNotIncluded)
	}
	if b.Site == nil {
		return errs
	}

	newRecord := b.ID == 0
	if b.PerRow() && newRecord && strings.TrimSpace(b.RawCSV) == "" {
		errs.Add("raw_csv", MsgRawCSVEmpty)
	}
	if _, err := b.Rows(); err != nil {
		errs.Add("raw_csv", MsgRawCSVInvalid)
		return errs
	}

	v.validatePaths(b, errs, newRecord)
	v.validateNewURLs(b, errs)
	return errs
}

func (v *Validator) validatePaths(b *Batch, errs Errors, newRecord bool) {
	for _, old := range b.OldURLs() {
		host, ok := c14n.Host(old)
		if !ok || (host != "" && !b.Site.HasHost(host)) {
			errs.Add("paths", MsgPathsNotForSite)
			break
		}
	}
	if newRecord && len(b.CanonicalPaths()) == 0 {
		errs.Add("paths", MsgPathsEmpty)
	}
}

func (v *Validator) validateNewURLs(b *Batch, errs Errors) {
	for _, newURL := range b.NewURLs() {
		if len(newURL) > MaxNewURLLength {
			errs.Add("new_url", MsgNewURLTooLong)
			continue
		}
		if !IsRedirectURL(newURL) {
			errs.Add("new_url", MsgNewURLInvalid)
			continue
		}
		if !v.Allowed(newURL) {
			errs.Add("new_url", fmt.Sprintf(msgNewURLNotAllowed, v.SupportEmail))
		}
	}
}

// Allowed reports whether the host of newURL is on the allow-list.
// An empty allow-list accepts every host.
func (v *Validator) Allowed(newURL string) bool {
	if len(v.AllowedHosts) == 0 {
		return true
	}
	host, ok := c14n.Host(newURL)
	if !ok || host == "" {
		return false
	}
	for _, allowed := range v.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
