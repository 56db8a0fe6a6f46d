package collector

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pvzzle/safescore/internal/model"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

type RPCConfig struct {
	URLs    []string
	Timeout time.Duration
	Depth   uint64
	Chain   string
	Retry   RetryPolicy
}

// RPCProvider scans recent blocks over JSON-RPC, newest first.
type RPCProvider struct {
	cfg RPCConfig
	hc  *http.Client
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

func NewRPCProvider(cfg RPCConfig, hc *http.Client, log *zap.Logger) *RPCProvider {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCProvider{
		cfg:     cfg,
		hc:      hc,
		log:     log.Named("rpc"),
		now:     time.Now,
		clients: make(map[string]*rpc.Client),
	}
}

func (p *RPCProvider) Name() string { return "rpc" }

type rpcBlock struct {
	Number       string  `json:"number"`
	Timestamp    string  `json:"timestamp"`
	Transactions []rpcTx `json:"transactions"`
}

type rpcTx struct {
	Hash  string  `json:"hash"`
	From  string  `json:"from"`
	To    *string `json:"to"` // nil для создания контракта
	Value string  `json:"value"`
	Input string  `json:"input"`
}

func (p *RPCProvider) FetchBatch(ctx context.Context, maxCount int, keep KeepFunc) ([]model.CanonicalTransaction, error) {
	if len(p.cfg.URLs) == 0 {
		return nil, ErrNotConfigured
	}
	if keep == nil {
		keep = keepAll
	}

	var head hexutil.Uint64
	if err := p.call(ctx, &head, "eth_blockNumber"); err != nil {
		return nil, fmt.Errorf("eth_blockNumber: %w", err)
	}
	top := uint64(head)
	span := min(top, p.cfg.Depth)

	now := p.now()
	var out []model.CanonicalTransaction
	for i := uint64(0); i <= span && len(out) < maxCount; i++ {
		n := top - i

		var blk *rpcBlock
		if err := p.call(ctx, &blk, "eth_getBlockByNumber", hexutil.EncodeUint64(n), true); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			p.log.Warn("block skipped", zap.Uint64("block", n), zap.Error(err))
			continue
		}
		if blk == nil {
			p.log.Debug("block not available", zap.Uint64("block", n))
			continue
		}

		for _, t := range blk.Transactions {
			if len(out) >= maxCount {
				break
			}
			to := ""
			if t.To != nil {
				to = *t.To
			}
			tx, ok := Normalize(model.RawTransaction{
				Hash:      t.Hash,
				Timestamp: blk.Timestamp,
				From:      t.From,
				To:        to,
				Value:     t.Value,
				Encoding:  model.EncodingHexWei,
				Input:     t.Input,
				Token:     "ETH",
				Chain:     p.cfg.Chain,
			}, now)
			if !ok || !keep(tx) {
				continue
			}
			out = append(out, tx)
		}
	}

	return out, nil
}

func (p *RPCProvider) call(ctx context.Context, result any, method string, args ...any) error {
	return p.cfg.Retry.Do(ctx, p.log, p.cfg.URLs, func(ctx context.Context, endpoint string) error {
		c, err := p.client(ctx, endpoint)
		if err != nil {
			return err
		}
		if p.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}
		return c.CallContext(ctx, result, method, args...)
	})
}

func (p *RPCProvider) client(ctx context.Context, endpoint string) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[endpoint]; ok {
		return c, nil
	}
	c, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(p.hc))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	p.clients[endpoint] = c
	return c, nil
}

func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ep, c := range p.clients {
		c.Close()
		delete(p.clients, ep)
	}
}
