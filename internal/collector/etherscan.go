package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/model"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	etherscanMaxOffset = 10000
	etherscanEndBlock  = 99999999
	msgNoTransactions  = "No transactions found"
)

type EtherscanConfig struct {
	APIKey        string
	URLs          []string
	ChainID       int64
	Addresses     []string
	BlocksBack    uint64
	MaxPerAddress int
	AddressDelay  time.Duration
	Chain         string
	Retry         RetryPolicy
}

// ProviderError is a logical error reported inside a 2xx response.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// EtherscanProvider fetches the recent history of monitored addresses from an
// Etherscan-compatible account API.
type EtherscanProvider struct {
	cfg     EtherscanConfig
	hc      *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func NewEtherscanProvider(cfg EtherscanConfig, hc *http.Client, log *zap.Logger) *EtherscanProvider {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxPerAddress <= 0 {
		cfg.MaxPerAddress = 100
	}

	limit := rate.Inf
	if cfg.AddressDelay > 0 {
		limit = rate.Every(cfg.AddressDelay)
	}

	return &EtherscanProvider{
		cfg:     cfg,
		hc:      hc,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Named("etherscan"),
		now:     time.Now,
	}
}

func (p *EtherscanProvider) Name() string { return "etherscan" }

func (p *EtherscanProvider) Enabled() bool {
	return strings.TrimSpace(p.cfg.APIKey) != "" && len(p.cfg.Addresses) > 0
}

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type etherscanTx struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Input     string `json:"input"`
}

func (p *EtherscanProvider) FetchBatch(ctx context.Context, maxCount int, keep KeepFunc) ([]model.CanonicalTransaction, error) {
	if !p.Enabled() {
		return nil, ErrNotConfigured
	}
	if keep == nil {
		keep = keepAll
	}

	head, err := p.blockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	start := head - min(head, p.cfg.BlocksBack)

	var (
		rows []etherscanTx
		errs []error
	)
	for _, addr := range p.cfg.Addresses {
		if len(rows) >= maxCount {
			break
		}
		// пауза между адресами (free tier ~5 req/s)
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		quota := min(p.cfg.MaxPerAddress, maxCount-len(rows))
		got, err := p.txList(ctx, addr, start, quota)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("txlist failed", zap.String("address", addr), zap.Int("partial", len(got)), zap.Error(err))
			errs = append(errs, fmt.Errorf("txlist %s: %w", addr, err))
		}
		rows = append(rows, got...)
	}

	now := p.now()
	out := make([]model.CanonicalTransaction, 0, min(len(rows), maxCount))
	for _, r := range rows {
		tx, ok := Normalize(model.RawTransaction{
			Hash:      r.Hash,
			Timestamp: r.TimeStamp,
			From:      r.From,
			To:        r.To,
			Value:     r.Value,
			Encoding:  model.EncodingDecimalWei,
			Input:     r.Input,
			Token:     "ETH",
			Chain:     p.cfg.Chain,
		}, now)
		if !ok || !keep(tx) {
			continue
		}
		out = append(out, tx)
		if len(out) >= maxCount {
			break
		}
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (p *EtherscanProvider) baseQuery() url.Values {
	q := url.Values{}
	q.Set("apikey", p.cfg.APIKey)
	if p.cfg.ChainID > 0 {
		q.Set("chainid", strconv.FormatInt(p.cfg.ChainID, 10))
	}
	return q
}

func (p *EtherscanProvider) blockNumber(ctx context.Context) (uint64, error) {
	q := p.baseQuery()
	q.Set("module", "proxy")
	q.Set("action", "eth_blockNumber")

	var head uint64
	err := p.cfg.Retry.Do(ctx, p.log, p.cfg.URLs, func(ctx context.Context, endpoint string) error {
		var env etherscanEnvelope
		if err := getJSON(ctx, p.hc, endpoint, q, &env); err != nil {
			return err
		}
		if env.Error != nil {
			return &ProviderError{Provider: p.Name(), Message: env.Error.Message}
		}
		if env.Status == "0" {
			return &ProviderError{Provider: p.Name(), Message: env.Message + ": " + string(env.Result)}
		}

		var hexHead string
		if err := json.Unmarshal(env.Result, &hexHead); err != nil {
			return &ProviderError{Provider: p.Name(), Message: "unexpected block number: " + string(env.Result)}
		}
		n, err := hexutil.DecodeUint64(hexHead)
		if err != nil {
			return &ProviderError{Provider: p.Name(), Message: "unexpected block number: " + hexHead}
		}
		head = n
		return nil
	})
	return head, err
}

// txList pages through an address history newest first until quota rows are read.
// On error the rows read so far are returned with it.
func (p *EtherscanProvider) txList(ctx context.Context, addr string, startBlock uint64, quota int) ([]etherscanTx, error) {
	perPage := min(quota, etherscanMaxOffset)
	if perPage <= 0 {
		return nil, nil
	}

	var out []etherscanTx
	for page := 1; len(out) < quota; page++ {
		q := p.baseQuery()
		q.Set("module", "account")
		q.Set("action", "txlist")
		q.Set("address", addr)
		q.Set("startblock", strconv.FormatUint(startBlock, 10))
		q.Set("endblock", strconv.Itoa(etherscanEndBlock))
		q.Set("page", strconv.Itoa(page))
		q.Set("offset", strconv.Itoa(perPage))
		q.Set("sort", "desc")

		var rows []etherscanTx
		err := p.cfg.Retry.Do(ctx, p.log, p.cfg.URLs, func(ctx context.Context, endpoint string) error {
			var env etherscanEnvelope
			if err := getJSON(ctx, p.hc, endpoint, q, &env); err != nil {
				return err
			}
			if env.Status == "0" {
				if strings.EqualFold(env.Message, msgNoTransactions) {
					rows = nil
					return nil
				}
				return &ProviderError{Provider: p.Name(), Message: env.Message + ": " + string(env.Result)}
			}
			rows = nil
			if err := json.Unmarshal(env.Result, &rows); err != nil {
				return &ProviderError{Provider: p.Name(), Message: "unexpected txlist result"}
			}
			return nil
		})
		if err != nil {
			return out, err
		}

		out = append(out, rows...)
		if len(rows) < perPage {
			break
		}
	}

	if len(out) > quota {
		out = out[:quota]
	}
	return out, nil
}
