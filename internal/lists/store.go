package lists

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	BlacklistFile        = "blacklist.csv"
	WatchlistFile        = "watchlist.csv"
	SensitiveTokensFile  = "sensitive_tokens.csv"
	SensitiveMethodsFile = "sensitive_methods.csv"
)

// DirStore reads the four reference lists from single-column CSV files in a directory.
type DirStore struct {
	dir string
	log *zap.Logger
}

func NewDirStore(dir string, log *zap.Logger) *DirStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirStore{dir: dir, log: log.Named("lists")}
}

func (s *DirStore) Load(ctx context.Context) (AddressLists, error) {
	out := Empty()

	files := []struct {
		file    string
		column  string
		dst     Set
		address bool
	}{
		{BlacklistFile, "address", out.Blacklist, true},
		{WatchlistFile, "address", out.Watchlist, true},
		{SensitiveTokensFile, "token", out.SensitiveTokens, false},
		{SensitiveMethodsFile, "method", out.SensitiveMethods, false},
	}

	for _, sp := range files {
		if err := ctx.Err(); err != nil {
			return AddressLists{}, err
		}

		values, err := readColumn(filepath.Join(s.dir, sp.file), sp.column)
		if err != nil {
			return AddressLists{}, fmt.Errorf("load %s: %w", sp.file, err)
		}
		for _, v := range values {
			if sp.address && !common.IsHexAddress(v) {
				s.log.Warn("list entry is not a hex address", zap.String("file", sp.file), zap.String("value", v))
			}
			sp.dst.Add(v)
		}
	}

	s.log.Debug("lists loaded",
		zap.Int("blacklist", len(out.Blacklist)),
		zap.Int("watchlist", len(out.Watchlist)),
		zap.Int("sensitive_tokens", len(out.SensitiveTokens)),
		zap.Int("sensitive_methods", len(out.SensitiveMethods)),
	)
	return out, nil
}

// readColumn returns the values of column from a CSV file with a header row.
// A missing file is an empty list. Without a matching header the first column is used.
func readColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		out    []string
		idx    = 0
		header = true
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			found := false
			for i, h := range rec {
				if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), column) {
					idx, found = i, true
					break
				}
			}
			if found {
				continue
			}
		}
		if idx >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[idx]); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
