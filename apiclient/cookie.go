package apiclient

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// CookieFile is an http.CookieJar persisted in the Netscape cookie file
// format used by cURL, wget and browsers' export tools:
//
//	domain  include-subdomains  path  secure  expiry  name  value
//
// Domain matching and expiry are handled by net/http/cookiejar with the
// public suffix list; CookieFile additionally remembers every stored cookie
// so the jar can be written back with Save.
type CookieFile struct {
	mu      sync.Mutex
	path    string
	jar     *cookiejar.Jar
	entries map[string]cookieEntry
	now     func() time.Time
}

type cookieEntry struct {
	domain     string
	subdomains bool
	path       string
	secure     bool
	httpOnly   bool
	expires    time.Time
	name       string
	value      string
}

func (e cookieEntry) key() string {
	return e.domain + "\t" + e.path + "\t" + e.name
}

var _ http.CookieJar = (*CookieFile)(nil)

// LoadCookieFile opens the cookie file at path. A missing file yields an
// empty jar; lines that cannot be parsed and expired cookies are skipped.
func LoadCookieFile(path string) (*CookieFile, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	cf := &CookieFile{
		path:    path,
		jar:     jar,
		entries: make(map[string]cookieEntry),
		now:     time.Now,
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cf, nil
	}
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := parseCookieLine(scanner.Text())
		if !ok {
			continue
		}
		if !entry.expires.IsZero() && !entry.expires.After(cf.now()) {
			continue
		}
		cf.store(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return cf, nil
}

// Path returns the file the jar is persisted to.
func (c *CookieFile) Path() string {
	return c.path
}

// Cookies implements http.CookieJar.
func (c *CookieFile) Cookies(u *url.URL) []*http.Cookie {
	return c.jar.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (c *CookieFile) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.jar.SetCookies(u, cookies)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ck := range cookies {
		entry, ok := entryFromCookie(u, ck, c.now())
		if !ok {
			continue
		}
		if ck.MaxAge < 0 || (!entry.expires.IsZero() && !entry.expires.After(c.now())) {
			delete(c.entries, entry.key())
			continue
		}
		c.entries[entry.key()] = entry
	}
}

// Len returns the number of cookies held.
func (c *CookieFile) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the jar back to its file. Expired cookies are dropped;
// session cookies are written with an expiry of 0.
func (c *CookieFile) Save() error {
	c.mu.Lock()
	keys := sortedKeys(c.entries)
	lines := make([]string, 0, len(keys)+2)
	lines = append(lines, netscapeHeader, "")
	now := c.now()
	for _, k := range keys {
		e := c.entries[k]
		if !e.expires.IsZero() && !e.expires.After(now) {
			continue
		}
		lines = append(lines, formatCookieLine(e))
	}
	c.mu.Unlock()

	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(c.path, []byte(data), 0o600); err != nil {
		return &IOError{Op: "write", Path: c.path, Err: err}
	}
	return nil
}

// store registers a parsed file entry with the underlying jar.
func (c *CookieFile) store(e cookieEntry) {
	host := strings.TrimPrefix(e.domain, ".")
	scheme := "http"
	if e.secure {
		scheme = "https"
	}
	u := &url.URL{Scheme: scheme, Host: host, Path: e.path}

	ck := &http.Cookie{
		Name:     e.name,
		Value:    e.value,
		Path:     e.path,
		Secure:   e.secure,
		HttpOnly: e.httpOnly,
		Expires:  e.expires,
	}
	if e.subdomains {
		ck.Domain = host
	}
	c.jar.SetCookies(u, []*http.Cookie{ck})

	c.mu.Lock()
	c.entries[e.key()] = e
	c.mu.Unlock()
}

// entryFromCookie converts a cookie received from u. It reports false when
// the jar would refuse the cookie's Domain attribute.
func entryFromCookie(u *url.URL, ck *http.Cookie, now time.Time) (cookieEntry, bool) {
	domain, subdomains, ok := cookieDomain(u.Hostname(), ck.Domain)
	if !ok {
		return cookieEntry{}, false
	}
	e := cookieEntry{
		domain:     domain,
		subdomains: subdomains,
		path:       ck.Path,
		secure:     ck.Secure,
		httpOnly:   ck.HttpOnly,
		name:       ck.Name,
		value:      ck.Value,
	}
	if e.path == "" || e.path[0] != '/' {
		e.path = defaultCookiePath(u.Path)
	}
	switch {
	case ck.MaxAge > 0:
		e.expires = now.Add(time.Duration(ck.MaxAge) * time.Second)
	case !ck.Expires.IsZero():
		e.expires = ck.Expires
	}
	return e, true
}

// cookieDomain applies the RFC 6265 section 5.3 domain rules. The Domain
// attribute must domain-match host and must not be a public suffix; on an
// IP host it is accepted only when equal to the host. Cookies without the
// attribute, or whose attribute names the host itself when that host is a
// public suffix or IP, are host-only.
func cookieDomain(host, attr string) (domain string, subdomains, ok bool) {
	host = strings.ToLower(host)
	attr = strings.TrimPrefix(strings.ToLower(attr), ".")
	if attr == "" {
		return host, false, true
	}
	if net.ParseIP(host) != nil {
		return host, false, attr == host
	}
	if attr != host && !strings.HasSuffix(host, "."+attr) {
		return "", false, false
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(attr); err != nil {
		return host, false, attr == host
	}
	return "." + attr, true, true
}

// defaultCookiePath implements RFC 6265 section 5.1.4.
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func parseCookieLine(line string) (cookieEntry, bool) {
	var e cookieEntry
	if strings.HasPrefix(line, httpOnlyPrefix) {
		e.httpOnly = true
		line = strings.TrimPrefix(line, httpOnlyPrefix)
	}
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return e, false
	}

	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return e, false
	}

	expiry, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return e, false
	}

	e.domain = strings.ToLower(fields[0])
	e.subdomains = strings.EqualFold(fields[1], "TRUE")
	e.path = fields[2]
	e.secure = strings.EqualFold(fields[3], "TRUE")
	if expiry > 0 {
		e.expires = time.Unix(expiry, 0)
	}
	e.name = fields[5]
	e.value = strings.Join(fields[6:], "\t")
	return e, true
}

func formatCookieLine(e cookieEntry) string {
	domain := e.domain
	if e.httpOnly {
		domain = httpOnlyPrefix + domain
	}
	var expiry int64
	if !e.expires.IsZero() {
		expiry = e.expires.Unix()
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%s\t%s",
		domain, netscapeBool(e.subdomains), e.path, netscapeBool(e.secure), expiry, e.name, e.value)
}

func netscapeBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// sortedCookieNames returns the names of cookies sent to u, for logging.
func sortedCookieNames(jar http.CookieJar, u *url.URL) []string {
	cookies := jar.Cookies(u)
	names := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		names = append(names, ck.Name)
	}
	sort.Strings(names)
	return names
}
