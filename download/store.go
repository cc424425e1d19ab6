package download

import (
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bowmanjd/sucker/fileutil"
	"github.com/bowmanjd/sucker/manifest"
	"github.com/flytam/filenamify"
	log "github.com/sirupsen/logrus"
)

// unwantedChars matches everything the stem derivation strips from a record
// name.
var unwantedChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Store persists fetched files in an output directory. The directory is
// created, parents included, on the first save.
type Store struct {
	outDir string // constant

	mkdirOnce sync.Once
	mkdirErr  error
}

func NewStore(outDir string) *Store {
	return &Store{
		outDir: outDir,
	}
}

// Save writes fetched bytes under the filename derived from the record,
// overwriting any existing file of the same name. It returns the filename,
// relative to the output directory. Failures are *WriteError.
func (s *Store) Save(rec manifest.Record, contentType string, b []byte) (string, error) {
	filename, err := Filename(rec, contentType)
	if err != nil {
		return "", &WriteError{Path: s.outDir, Err: err}
	}

	s.mkdirOnce.Do(func() {
		s.mkdirErr = fileutil.EnsureDir(s.outDir)
	})
	if s.mkdirErr != nil {
		return "", &WriteError{Path: s.outDir, Err: s.mkdirErr}
	}

	destPath := filepath.Join(s.outDir, filename)
	log.Debugf("saving %s", destPath)
	if err := os.WriteFile(destPath, b, 0644); err != nil {
		return "", &WriteError{Path: destPath, Err: err}
	}

	return filename, nil
}

// Filename returns the local filename the store would use for the given
// record: the record name lowercased with whitespace collapsed to
// underscores and unwanted characters removed, joined to the SKU with a
// dash, plus an extension taken from the url path or, failing that, guessed
// from the response Content-Type.
func Filename(rec manifest.Record, contentType string) (string, error) {
	stem := strings.Join(strings.Fields(rec.Name), "_")
	stem = strings.ToLower(stem)
	stem = unwantedChars.ReplaceAllString(stem, "")
	stem = stem + "-" + strings.TrimSpace(rec.SKU)

	return filenamify.Filenamify(stem+extension(rec.URL, contentType), filenamify.Options{})
}

// extension returns the extension of the url's trailing path segment. If the
// path carries none, it falls back to the response Content-Type. It returns
// "" if neither yields one.
func extension(u string, contentType string) string {
	if parsed, err := url.Parse(u); err == nil {
		if ext := path.Ext(parsed.Path); ext != "" {
			return ext
		}
	}

	if contentType == "" {
		return ""
	}
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediatype)
	if err != nil || len(exts) == 0 {
		return ""
	}

	log.Debugf("no extension in url; inferring %s from content type %s", exts[0], mediatype)
	return exts[0]
}
