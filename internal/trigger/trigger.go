// Package trigger runs the id-server admin calls and logs their outcome.
//
// A tick runs the deletion trigger to completion, then the transfer trigger.
// Every failure ends only the call it happened in.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"iddaemon/internal/idserver"
	logx "iddaemon/pkg/logx"
)

// AdminClient is the subset of *idserver.Client the triggers use.
type AdminClient interface {
	DeleteUserIDVData(ctx context.Context) (*idserver.Response[idserver.DeletionResult], error)
	TransferFunds(ctx context.Context) (*idserver.Response[idserver.TransferResult], error)
}

// Trigger names, used in log fields and Outcome.
const (
	NameDeletion = "delete-user-idv-data"
	NameTransfer = "transfer-funds"
)

// Log messages operators grep for.
const (
	MsgDeletionOK     = "Successfully triggered deletion of user data from IDV provider databases"
	MsgDeletionFailed = "Error triggering deletion of user data from IDV provider databases"
	MsgTransferOK     = "Successfully triggered transfer of funds"
	MsgTransferFailed = "Error triggering transfer of funds"
	MsgParseFailed    = "Error parsing response json"
)

type Kind int

const (
	KindOK Kind = iota
	KindBadStatus
	KindDecode
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBadStatus:
		return "bad_status"
	case KindDecode:
		return "decode_error"
	case KindTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one trigger.
type Outcome struct {
	Trigger    string
	Kind       Kind
	StatusCode int
	Err        error
	Took       time.Duration
}

func (o Outcome) OK() bool { return o.Kind == KindOK }

// TickResult is the result of one tick.
type TickResult struct {
	Seq      uint64
	Deletion Outcome
	Transfer Outcome
	Took     time.Duration
}

type Runner struct {
	client AdminClient
	log    logx.Logger

	// mu serializes ticks: a scheduled tick and a manual RunOnce never
	// interleave.
	mu  sync.Mutex
	seq uint64
}

func NewRunner(client AdminClient, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{client: client, log: log}
}

// Tick runs deletion then transfer. The transfer runs regardless of how the
// deletion ended.
func (r *Runner) Tick(ctx context.Context) TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	res := TickResult{Seq: r.seq}
	start := time.Now()
	log := r.log.With(logx.Uint64("tick", res.Seq))
	log.Debug("tick started")

	res.Deletion = r.deleteUserData(ctx, log)
	res.Transfer = r.transferFunds(ctx, log)
	res.Took = time.Since(start)

	log.Info("tick finished",
		logx.String("deletion", res.Deletion.Kind.String()),
		logx.String("transfer", res.Transfer.Kind.String()),
		logx.Duration("took", res.Took),
	)
	return res
}

// DeleteUserData runs the deletion trigger alone.
func (r *Runner) DeleteUserData(ctx context.Context) Outcome {
	return r.deleteUserData(ctx, r.log)
}

// TransferFunds runs the transfer trigger alone.
func (r *Runner) TransferFunds(ctx context.Context) Outcome {
	return r.transferFunds(ctx, r.log)
}

func (r *Runner) deleteUserData(ctx context.Context, log logx.Logger) Outcome {
	return run(ctx, log.With(logx.String("trigger", NameDeletion)), NameDeletion,
		MsgDeletionOK, MsgDeletionFailed, r.client.DeleteUserIDVData, nil)
}

func (r *Runner) transferFunds(ctx context.Context, log logx.Logger) Outcome {
	log = log.With(logx.String("trigger", NameTransfer))
	return run(ctx, log, NameTransfer, MsgTransferOK, MsgTransferFailed, r.client.TransferFunds,
		func(body idserver.TransferResult) { logChains(log, &body) })
}

func run[T any](
	ctx context.Context,
	log logx.Logger,
	name, okMsg, failMsg string,
	call func(context.Context) (*idserver.Response[T], error),
	onOK func(T),
) Outcome {
	start := time.Now()
	out := Outcome{Trigger: name}

	resp, err := call(ctx)
	out.Took = time.Since(start)
	if err != nil {
		out.Err = err
		var de *idserver.DecodeError
		if errors.As(err, &de) {
			out.Kind = KindDecode
			out.StatusCode = de.StatusCode
			log.Error(MsgParseFailed,
				logx.Err(err),
				logx.Int("status", de.StatusCode),
				bodyField(de.Body),
			)
			return out
		}
		out.Kind = KindTransport
		log.Error(failMsg, logx.Err(err))
		return out
	}

	out.StatusCode = resp.StatusCode
	fields := []logx.Field{
		logx.Int("status", resp.StatusCode),
		logx.Any("response", resp.Body),
		logx.Duration("took", out.Took),
	}
	if !resp.OK() {
		out.Kind = KindBadStatus
		log.Error(failMsg, fields...)
		return out
	}
	log.Info(okMsg, fields...)
	if onOK != nil {
		onOK(resp.Body)
	}
	return out
}

// logChains writes one line per chain value of a successful transfer.
func logChains(log logx.Logger, body *idserver.TransferResult) {
	for _, cv := range body.Chains() {
		o := idserver.SummarizeChain(cv.Chain, cv.Value)
		if ok, known := o.Succeeded(); known && !ok {
			log.Warn("chain transfer reverted", o.Fields()...)
			continue
		}
		log.Debug("chain transfer", o.Fields()...)
	}
}

// maxLoggedBody caps the response body echoed on a parse error.
const maxLoggedBody = 512

// bodyField embeds a short body as JSON when it is valid JSON, and a
// truncated string otherwise.
func bodyField(b []byte) logx.Field {
	if len(b) <= maxLoggedBody {
		return logx.RawJSON("body", b)
	}
	return logx.String("body", truncate(b, maxLoggedBody))
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
