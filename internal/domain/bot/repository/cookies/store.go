// Package cookies stores the Netscape cookie file passed to the extractor
package cookies

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/pkg/fileutil"
)

// Store keeps the cookie file at a fixed path
type Store struct {
	path   string
	logger zerolog.Logger
}

// New creates a cookie store
func New(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the cookie file path, or ErrNoCookies when nothing usable is stored
func (s *Store) Path() (string, error) {
	info, err := os.Stat(s.path)
	if err != nil || info.Size() == 0 {
		return "", boterrors.ErrNoCookies
	}
	return s.path, nil
}

// Save validates and replaces the cookie file
func (s *Store) Save(_ context.Context, data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return boterrors.ErrEmptyCookies
	}

	n, ok := validate(data)
	if !ok {
		return boterrors.ErrInvalidCookies
	}

	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o600); err != nil {
		return err
	}

	s.logger.Info().Int("cookies", n).Msg("Cookie file updated")
	return nil
}

// validate counts cookie lines; a Netscape line has seven tab separated fields
func validate(data []byte) (int, bool) {
	count := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		// #HttpOnly_ prefixed lines are cookies, other # lines are comments
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(strings.Split(line, "\t")) != 7 {
			return 0, false
		}
		count++
	}
	if sc.Err() != nil {
		return 0, false
	}
	return count, count > 0
}
