package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/htmlindex"
)

// acceptEncoding lists every content coding decodeContent understands.
const acceptEncoding = "gzip, deflate, zstd"

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// BuildQuery encodes values using the bracket notation most form-based
// APIs expect:
//
//   - nested maps become a[b]=c
//   - slices become a[0]=x&a[1]=y
//   - true and false become 1 and 0
//   - nil values are skipped
//
// Keys are emitted in sorted order.
func BuildQuery(values map[string]any) string {
	var pairs []string
	for _, k := range sortedKeys(values) {
		pairs = appendQuery(pairs, k, reflect.ValueOf(values[k]))
	}
	return strings.Join(pairs, "&")
}

func appendQuery(pairs []string, key string, v reflect.Value) []string {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return pairs
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return pairs
	}

	if s, ok := scalarString(v); ok {
		return append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(s))
	}

	switch v.Kind() {
	case reflect.Map:
		keys := v.MapKeys()
		names := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, mk := range keys {
			names[i] = fmt.Sprint(mk.Interface())
			byName[names[i]] = v.MapIndex(mk)
		}
		sort.Strings(names)
		for _, name := range names {
			pairs = appendQuery(pairs, key+"["+name+"]", byName[name])
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			pairs = appendQuery(pairs, key+"["+strconv.Itoa(i)+"]", v.Index(i))
		}
	default:
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(fmt.Sprint(v.Interface())))
	}
	return pairs
}

// scalarString renders v when it is a scalar.
func scalarString(v reflect.Value) (string, bool) {
	if v.CanInterface() && v.Kind() != reflect.Map && v.Kind() != reflect.Slice {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String(), true
		}
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		if v.Bool() {
			return "1", true
		}
		return "0", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits()), true
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes()), true
		}
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeBody encodes POST parameters as JSON or as a form body.
func encodeBody(post map[string]any, asJSON bool) ([]byte, string, error) {
	if asJSON {
		body, err := json.Marshal(post)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return body, "application/json", nil
	}
	return []byte(BuildQuery(post)), "application/x-www-form-urlencoded", nil
}

// decodeContent undoes the Content-Encoding of a response body. Codings are
// removed in reverse order of application; unknown codings are left as is.
func decodeContent(body []byte, contentEncoding string) ([]byte, error) {
	if contentEncoding == "" || len(body) == 0 {
		return body, nil
	}

	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		switch strings.ToLower(strings.TrimSpace(codings[i])) {
		case "gzip", "x-gzip":
			body, err = gunzip(body)
		case "deflate":
			body, err = inflate(body)
		case "zstd":
			body, err = zstdDecoder.DecodeAll(body, nil)
		default:
			return body, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", strings.TrimSpace(codings[i]), err)
		}
	}
	return body, nil
}

// inflate handles both zlib-wrapped and raw deflate streams; servers
// disagree on what "deflate" means.
func inflate(body []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer zr.Close()
		if out, err := io.ReadAll(zr); err == nil {
			return out, nil
		}
	}
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	return io.ReadAll(fr)
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// transcodeToUTF8 converts body from the charset named in contentType.
// Bodies without a charset, or with an unknown one, are returned unchanged.
func transcodeToUTF8(body []byte, contentType string) []byte {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}
