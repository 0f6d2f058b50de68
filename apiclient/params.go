package apiclient

import (
	"errors"
	"maps"
	"os"
	"sync"
)

// Reserved authentication keys. They are stored apart from the free-form
// auth parameters and never appear in AuthParams().
const (
	AuthLogin    = "login"
	AuthPassword = "password"
	AuthDomain   = "domain"
)

// Params holds the mutable request state shared by every Request of a
// client session: credentials, GET and POST parameters, an optional proxy
// and an optional file staged for upload.
//
// Params is safe for concurrent use, but a logical request reads several
// fields in sequence, so callers sharing one Params between goroutines must
// still serialize whole requests.
//
// Example:
//
//	params := apiclient.NewParams().
//	    AddAuth(apiclient.AuthDomain, "example.pro").
//	    AddAuth("key", "abc").
//	    AddGet("type", "order_bot")
type Params struct {
	mu sync.RWMutex

	authParams map[string]string
	login      string
	password   string
	domain     string
	hasLogin   bool
	hasPass    bool
	hasDomain  bool

	getParams  map[string]any
	postParams map[string]any

	proxy    string
	hasProxy bool

	file       string
	fileHandle *os.File
}

// FileParams describes the staged upload file.
type FileParams struct {
	Name string
	Size int64
}

// NewParams creates an empty parameter store.
func NewParams() *Params {
	return &Params{
		authParams: make(map[string]string),
		getParams:  make(map[string]any),
		postParams: make(map[string]any),
	}
}

// AddAuth sets an authentication value. The reserved names login, password
// and domain go to their dedicated fields; anything else is kept in the
// free-form auth map.
func (p *Params) AddAuth(name, value string) *Params {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case AuthLogin:
		p.login, p.hasLogin = value, true
	case AuthPassword:
		p.password, p.hasPass = value, true
	case AuthDomain:
		p.domain, p.hasDomain = value, true
	default:
		p.authParams[name] = value
	}
	return p
}

// Auth returns a single authentication value and whether it is set.
func (p *Params) Auth(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch name {
	case AuthLogin:
		return p.login, p.hasLogin
	case AuthPassword:
		return p.password, p.hasPass
	case AuthDomain:
		return p.domain, p.hasDomain
	default:
		v, ok := p.authParams[name]
		return v, ok
	}
}

// AuthParams returns a copy of the free-form auth map. The reserved
// login, password and domain values are not included.
func (p *Params) AuthParams() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.authParams)
}

// AddGet sets a single GET parameter.
func (p *Params) AddGet(name string, value any) *Params {
	p.mu.Lock()
	p.getParams[name] = value
	p.mu.Unlock()
	return p
}

// MergeGet merges values into the GET parameters. Existing keys are
// overwritten by the new values.
func (p *Params) MergeGet(values map[string]any) *Params {
	p.mu.Lock()
	maps.Copy(p.getParams, values)
	p.mu.Unlock()
	return p
}

// GetParam returns a single GET parameter.
func (p *Params) GetParam(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.getParams[name]
	return v, ok
}

// GetParams returns a copy of all GET parameters.
func (p *Params) GetParams() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.getParams)
}

// HasGet reports whether any GET parameter is set.
func (p *Params) HasGet() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.getParams) > 0
}

// ClearGet removes all GET parameters.
func (p *Params) ClearGet() *Params {
	p.mu.Lock()
	p.getParams = make(map[string]any)
	p.mu.Unlock()
	return p
}

// AddPost sets a single POST parameter.
func (p *Params) AddPost(name string, value any) *Params {
	p.mu.Lock()
	p.postParams[name] = value
	p.mu.Unlock()
	return p
}

// MergePost merges values into the POST parameters. Existing keys are
// overwritten by the new values.
func (p *Params) MergePost(values map[string]any) *Params {
	p.mu.Lock()
	maps.Copy(p.postParams, values)
	p.mu.Unlock()
	return p
}

// PostParam returns a single POST parameter.
func (p *Params) PostParam(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.postParams[name]
	return v, ok
}

// PostParams returns a copy of all POST parameters.
func (p *Params) PostParams() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.postParams)
}

// HasPost reports whether any POST parameter is set.
func (p *Params) HasPost() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.postParams) > 0
}

// ClearPost removes all POST parameters.
func (p *Params) ClearPost() *Params {
	p.mu.Lock()
	p.postParams = make(map[string]any)
	p.mu.Unlock()
	return p
}

// SetProxy sets the proxy address used for subsequent requests,
// e.g. "http://proxy.internal:3128".
func (p *Params) SetProxy(addr string) *Params {
	p.mu.Lock()
	p.proxy, p.hasProxy = addr, true
	p.mu.Unlock()
	return p
}

// Proxy returns the proxy address and whether one is set.
func (p *Params) Proxy() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.proxy, p.hasProxy
}

// HasProxy reports whether a proxy is set.
func (p *Params) HasProxy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasProxy
}

// SetFile stages a file for upload. The path must name a regular file that
// can be opened for reading; it is opened and closed immediately as a check.
// On failure an *IOError is returned and any previously staged file is kept.
//
// Staging a new file does not close a stream opened with OpenFile for the
// previous one. Call CloseFile first.
func (p *Params) SetFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &IOError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &IOError{Op: "stat", Path: path, Err: errors.New("not a regular file")}
	}

	f, err := os.Open(path)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}

	p.mu.Lock()
	p.file = path
	p.mu.Unlock()
	return nil
}

// Filename returns the staged file path, or "" if none.
func (p *Params) Filename() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.file
}

// HasFile reports whether a file is staged.
func (p *Params) HasFile() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.file != ""
}

// FileSize returns the current size of the staged file.
func (p *Params) FileSize() (int64, error) {
	name := p.Filename()
	if name == "" {
		return 0, &IOError{Op: "stat", Path: name, Err: errors.New("no file staged")}
	}
	info, err := os.Stat(name)
	if err != nil {
		return 0, &IOError{Op: "stat", Path: name, Err: err}
	}
	return info.Size(), nil
}

// FileParams returns the name and size of the staged file. The boolean is
// false when no file is staged or it can no longer be inspected.
func (p *Params) FileParams() (FileParams, bool) {
	name := p.Filename()
	if name == "" {
		return FileParams{}, false
	}
	size, err := p.FileSize()
	if err != nil {
		return FileParams{}, false
	}
	return FileParams{Name: name, Size: size}, true
}

// OpenFile opens the staged file for binary reading. The stream must be
// released with CloseFile.
func (p *Params) OpenFile() (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == "" {
		return nil, &IOError{Op: "open", Err: errors.New("no file staged")}
	}
	f, err := os.Open(p.file)
	if err != nil {
		return nil, &IOError{Op: "open", Path: p.file, Err: err}
	}
	p.fileHandle = f
	return f, nil
}

// CloseFile closes the stream returned by OpenFile. Closing when no stream
// is open is a no-op.
func (p *Params) CloseFile() error {
	p.mu.Lock()
	f := p.fileHandle
	p.fileHandle = nil
	p.mu.Unlock()

	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return &IOError{Op: "close", Path: f.Name(), Err: err}
	}
	return nil
}

// ClearFile closes any open stream and unstages the file.
func (p *Params) ClearFile() error {
	err := p.CloseFile()
	p.mu.Lock()
	p.file = ""
	p.mu.Unlock()
	return err
}
