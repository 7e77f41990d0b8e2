// Package dispatch implements CommandDispatcher from spec.md §4.9: builds
// and signs commands, hands them to an external executor under a
// caller-supplied deadline, records rollback tokens, and writes ledger
// entries — including a distinct entry kind on delivery failure, since
// delivery is best-effort with no implicit retry.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
	"github.com/ransomeye/core/pkg/signing"
	"github.com/ransomeye/core/pkg/store"
)

// Ledger entry kinds specific to command dispatch, beyond the generic
// per-record-kind entries.
const (
	RecordKindCommand          = "COMMAND"
	RecordKindRollbackArtifact = "ROLLBACK_ARTIFACT"
	RecordKindDeliveryFailed   = "DELIVERY_FAILED"
	RecordKindDeliveryTimeout  = "DELIVERY_TIMEOUT"
)

// ExecutionResult is what an external executor (out of scope, per spec.md
// §1's non-goals) returns after attempting a signed command.
type ExecutionResult struct {
	OriginalStateSnapshot map[string]interface{} `json:"original_state_snapshot"`
	ExecutionResult       map[string]interface{} `json:"execution_result"`
}

// Executor is the opaque, out-of-scope collaborator that actually performs
// the effect (iptables rule, file move, etc.) and reports back a
// pre-action snapshot for rollback.
type Executor interface {
	Execute(ctx context.Context, cmd records.Command) (ExecutionResult, error)
}

// TargetResolver resolves a logical target name to a delivery-ready
// address from a read-only targets store.
type TargetResolver interface {
	Resolve(target string) (string, error)
}

// CommandDispatcher is the write path from an authorized RoutingDecision to
// a signed, persisted, delivered Command.
type CommandDispatcher struct {
	factory       *records.Factory
	signer        *signing.Signer
	commandStore  *store.AppendOnlyStore
	rollbackStore *store.AppendOnlyStore
	audit         *ledger.AuditLedger
	targets       TargetResolver
	limiter       *rate.Limiter
}

// New wires a CommandDispatcher. ratePerSecond paces calls into Executor so
// a misbehaving executor cannot be hammered; burst allows short bursts
// above the steady rate.
func New(factory *records.Factory, signer *signing.Signer, commandStore, rollbackStore *store.AppendOnlyStore, audit *ledger.AuditLedger, targets TargetResolver, ratePerSecond float64, burst int) *CommandDispatcher {
	return &CommandDispatcher{
		factory:       factory,
		signer:        signer,
		commandStore:  commandStore,
		rollbackStore: rollbackStore,
		audit:         audit,
		targets:       targets,
		limiter:       rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Dispatch builds, signs, persists, and delivers a command for an
// authorized decision. ctx's deadline bounds delivery: expiration records a
// DELIVERY_TIMEOUT ledger entry rather than retrying, per spec.md §5.
func (d *CommandDispatcher) Dispatch(ctx context.Context, decision records.RoutingDecision, commandType, incidentID, policyID, policyVersion string, executor Executor) (records.Command, string, error) {
	target, err := d.targets.Resolve(string(decision.RoutingAction))
	if err != nil {
		return records.Command{}, "", rerrors.New(rerrors.PolicyRejection, "dispatch.Dispatch", "target resolution failed", err)
	}

	payload, err := d.factory.NewCommandPayload(commandType, target, incidentID, policyID, policyVersion, decision.RequiredAuthority)
	if err != nil {
		return records.Command{}, "", err
	}

	payloadBytes, err := canon.Bytes(payload)
	if err != nil {
		return records.Command{}, "", rerrors.New(rerrors.InputRejected, "dispatch.Dispatch", "canonicalize payload", err)
	}
	cmd := records.Command{
		Payload:          payload,
		Signature:        d.signer.Sign(payloadBytes),
		SigningKeyID:     d.signer.KeyID,
		SigningAlgorithm: "ed25519",
		SignedAt:         payload.Timestamp,
	}

	cmdLine, err := canon.Bytes(cmd)
	if err != nil {
		return records.Command{}, "", rerrors.New(rerrors.InputRejected, "dispatch.Dispatch", "canonicalize command", err)
	}
	if err := d.commandStore.Append(cmdLine); err != nil {
		return records.Command{}, "", err
	}
	cmdRef := canon.HashBytes(cmdLine)
	if _, err := d.audit.AppendEntry(RecordKindCommand, cmdRef); err != nil {
		return records.Command{}, "", err
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.recordDeliveryFailure(cmdRef, RecordKindDeliveryTimeout)
		return cmd, "", rerrors.New(rerrors.DeliveryFailure, "dispatch.Dispatch", "rate limiter wait: "+err.Error(), ctx.Err())
	}

	result, err := executor.Execute(ctx, cmd)
	if err != nil {
		kind := RecordKindDeliveryFailed
		if ctx.Err() != nil {
			kind = RecordKindDeliveryTimeout
		}
		d.recordDeliveryFailure(cmdRef, kind)
		return cmd, "", rerrors.New(rerrors.DeliveryFailure, "dispatch.Dispatch", "executor failed", err)
	}

	artifact, err := d.factory.NewRollbackArtifact(result.OriginalStateSnapshot, commandType)
	if err != nil {
		return cmd, "", err
	}
	artifact.ExecutionResult = result.ExecutionResult

	artifactLine, err := canon.Bytes(artifact)
	if err != nil {
		return cmd, "", rerrors.New(rerrors.InputRejected, "dispatch.Dispatch", "canonicalize rollback artifact", err)
	}
	if err := d.rollbackStore.Append(artifactLine); err != nil {
		return cmd, "", err
	}
	if _, err := d.audit.AppendEntry(RecordKindRollbackArtifact, artifact.RollbackToken); err != nil {
		return cmd, "", err
	}

	return cmd, artifact.RollbackToken, nil
}

// Retry is a distinct, explicit operation from the initial delivery
// attempt, per spec.md §4.9's "retry is a separate, explicit call".
func (d *CommandDispatcher) Retry(ctx context.Context, cmd records.Command, executor Executor) (ExecutionResult, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch.Retry: rate limiter wait: %w", err)
	}
	return executor.Execute(ctx, cmd)
}

func (d *CommandDispatcher) recordDeliveryFailure(cmdRef, kind string) {
	_, _ = d.audit.AppendEntry(kind, cmdRef)
}
