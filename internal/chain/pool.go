// Package chain adapts go-ethereum RPC clients to the engine's quote, chain
// fact and pair discovery ports.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/observability"
)

// Backend is the subset of *ethclient.Client the adapters need.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	URLs        []string
	CallTimeout time.Duration
	RatePerSec  float64
	Burst       int
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Pool rotates calls round-robin across RPC providers. Every call waits on a
// shared rate limiter and runs under its own timeout. A transient failure is
// retried once on the next provider.
type Pool struct {
	backends []Backend
	closers  []func()
	next     atomic.Uint64
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Dial connects to every configured URL.
func Dial(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("chain: no rpc urls configured")
	}
	backends := make([]Backend, 0, len(cfg.URLs))
	closers := make([]func(), 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		c, err := ethclient.DialContext(ctx, u)
		if err != nil {
			for _, closeFn := range closers {
				closeFn()
			}
			return nil, fmt.Errorf("chain: dial %s: %w", redactURL(u), err)
		}
		backends = append(backends, c)
		closers = append(closers, c.Close)
	}
	p := NewPool(backends, cfg)
	p.closers = closers
	return p, nil
}

// NewPool wraps already-connected backends.
func NewPool(backends []Backend, cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Pool{
		backends: backends,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  cfg.CallTimeout,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("component", "rpc_pool")),
	}
}

// Close releases every dialed client.
func (p *Pool) Close() {
	for _, closeFn := range p.closers {
		closeFn()
	}
}

// Size returns the number of providers.
func (p *Pool) Size() int { return len(p.backends) }

func (p *Pool) pick() Backend {
	i := p.next.Add(1) - 1
	return p.backends[i%uint64(len(p.backends))]
}

// do runs fn on the next provider, retrying once on another provider when
// the first failure is transient.
func (p *Pool) do(ctx context.Context, method string, fn func(context.Context, Backend) error) error {
	if len(p.backends) == 0 {
		return errors.New("chain: no rpc backends")
	}
	attempts := 1
	if len(p.backends) > 1 {
		attempts = 2
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.limiter.Wait(ctx); err != nil {
			return err
		}
		err = p.once(ctx, method, fn)
		if err == nil || errors.Is(err, domain.ErrStructural) || ctx.Err() != nil {
			return err
		}
		p.logger.Debug("rpc call failed, rotating provider", slog.String("method", method), slog.String("error", err.Error()))
	}
	return err
}

func (p *Pool) once(ctx context.Context, method string, fn func(context.Context, Backend) error) error {
	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	err := classify(fn(callCtx, p.pick()))
	p.metrics.RecordRPCLatency(method, time.Since(start))
	return err
}

// Call executes a read-only contract call.
func (p *Pool) Call(ctx context.Context, method string, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := p.do(ctx, method, func(ctx context.Context, b Backend) error {
		res, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return fmt.Errorf("%s on %s: empty result: %w", method, to.Hex(), domain.ErrStructural)
		}
		out = res
		return nil
	})
	return out, err
}

// EstimateGas estimates the gas a transaction would use.
func (p *Pool) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := p.do(ctx, "eth_estimateGas", func(ctx context.Context, b Backend) error {
		var err error
		gas, err = b.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// SuggestGasPrice returns the node's gas price suggestion.
func (p *Pool) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := p.do(ctx, "eth_gasPrice", func(ctx context.Context, b Backend) error {
		var err error
		price, err = b.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// reserveReverts are revert reasons that depend on current reserves or on
// the quoted amount. A later block can clear them.
var reserveReverts = []string{
	"INSUFFICIENT_LIQUIDITY",
	"INSUFFICIENT_INPUT_AMOUNT",
	"INSUFFICIENT_OUTPUT_AMOUNT",
	"UniswapV2: K",
}

// classify wraps reverts as domain.ErrStructural, except reverts whose reason
// depends on reserves. Everything else, including provider errors carried in
// a JSON-RPC error object, is transient.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrStructural) {
		return err
	}
	if !isRevert(err) || isReserveRevert(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStructural, err)
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	if revertData(err) != nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "invalid opcode")
}

func isReserveRevert(err error) bool {
	reason := err.Error()
	if data := revertData(err); data != nil {
		if r, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
			reason += " " + r
		}
	}
	for _, marker := range reserveReverts {
		if strings.Contains(reason, marker) {
			return true
		}
	}
	return false
}

// revertData returns the hex payload attached to a JSON-RPC error, or nil.
func revertData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	s, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil
	}
	raw, decErr := hexutil.Decode(s)
	if decErr != nil || len(raw) == 0 {
		return nil
	}
	return raw
}

// redactURL drops the path of an RPC URL, which usually carries an API key.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		if j := strings.Index(u[i+3:], "/"); j >= 0 {
			return u[:i+3+j] + "/***"
		}
	}
	return u
}
