// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator coordinates one chat request end to end.
//
// # Description
//
// The pipeline is: verify credential -> resolve folder -> retrieve
// context -> assemble prompt -> complete. Each stage maps its failures
// into the ChatError taxonomy so the HTTP layer only ever deals with one
// error type. Transient upstream failures (identity service outages,
// provider 429s and 5xx) are retried with bounded exponential backoff;
// everything else fails fast.
//
// A degraded retrieval (no fragments) is NOT an error: the request
// proceeds with a fallback prompt and an empty citation list, which is
// how the client tells a grounded answer from an ungrounded one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/datatypes"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/folder"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/identity"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/observability"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/prompt"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/retrieval"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/retry"
	"github.com/AleutianAI/AleutianDriveChat/services/llm"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.drivechat.orchestrator")

// =============================================================================
// Dependency Interfaces
// =============================================================================

// IdentityVerifier authenticates the session credential.
type IdentityVerifier interface {
	Verify(ctx context.Context) (*identity.Identity, error)
}

// VerifierPool hands out an IdentityVerifier scoped to one presented
// credential. Unrelated requests must receive independent verifiers so
// one session's rejected token can never ride another session's
// credential. Satisfied by wrapping *identity.ClientPool.
type VerifierPool interface {
	ForCredential(token string) IdentityVerifier
}

// VerifierPoolFunc adapts a function to the VerifierPool interface.
type VerifierPoolFunc func(token string) IdentityVerifier

// ForCredential implements VerifierPool.
func (f VerifierPoolFunc) ForCredential(token string) IdentityVerifier {
	return f(token)
}

// FolderResolver maps external folder ids to canonical folders.
type FolderResolver interface {
	Resolve(ctx context.Context, externalID string) (folder.CanonicalFolder, error)
}

// ContextRetriever produces ranked fragments for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query, folderID, fileID string) ([]datatypes.Fragment, error)
}

// PromptAssembler builds the grounded system prompt and reports which
// fragments it rendered.
type PromptAssembler interface {
	Assemble(query string, fragments []datatypes.Fragment, systemContext string) (string, []datatypes.Fragment)
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs the chat pipeline.
//
// # Thread Safety
//
// Safe for concurrent use as long as the injected dependencies are.
// Credential state lives inside the per-credential verifiers handed out
// by the pool; the orchestrator itself holds no per-request state.
type Orchestrator struct {
	verifiers VerifierPool
	resolver  FolderResolver
	retriever ContextRetriever
	assembler PromptAssembler
	llmClient llm.LLMClient
	policy    retry.Policy
	metrics   *observability.ChatMetrics
	now       func() time.Time
}

// NewOrchestrator wires the chat pipeline.
//
// Parameters:
//   - verifiers: Per-credential identity verifier pool (or a fake in
//     tests).
//   - resolver, retriever, assembler, llmClient: Pipeline stages.
//   - policy: Retry policy for transient upstream failures.
//   - metrics: Optional; nil disables metric recording.
func NewOrchestrator(
	verifiers VerifierPool,
	resolver FolderResolver,
	retriever ContextRetriever,
	assembler PromptAssembler,
	llmClient llm.LLMClient,
	policy retry.Policy,
	metrics *observability.ChatMetrics,
) *Orchestrator {
	return &Orchestrator{
		verifiers: verifiers,
		resolver:  resolver,
		retriever: retriever,
		assembler: assembler,
		llmClient: llmClient,
		policy:    policy,
		metrics:   metrics,
		now:       time.Now,
	}
}

// HandleChat answers one chat request.
//
// # Description
//
// Obtains the verifier scoped to the request's bearer token, verifies it
// against the identity service (retrying transient outages), resolves the
// external folder id, retrieves context, assembles the grounded prompt,
// and calls the completion provider (retrying rate limits and 5xx).
// Citations and context documents are derived strictly from the fragments
// the assembler actually rendered, so a citation can never point at
// content the model was not shown.
//
// # Outputs
//
//   - *datatypes.ChatResponse: The complete answer. Never partial.
//   - error: Always a *ChatError; see the Kind constants for the mapping.
func (o *Orchestrator) HandleChat(ctx context.Context, token, externalFolderID string, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	start := o.now()
	requestID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "orchestrator.HandleChat")
	defer span.End()
	span.SetAttributes(attribute.String("chat.request_id", requestID))

	if o.metrics != nil {
		o.metrics.ActiveRequests.Inc()
		defer o.metrics.ActiveRequests.Dec()
	}

	resp, err := o.handleChat(ctx, token, externalFolderID, requestID, req)
	if err != nil {
		ce := AsChatError(err)
		// An elapsed overall deadline is reported as a timeout no matter
		// which stage it surfaced in.
		if errors.Is(err, context.DeadlineExceeded) {
			ce = NewChatError(KindTimeout, "request deadline exceeded", err)
		}
		o.countOutcome(string(ce.Kind))
		slog.Error("Chat request failed",
			"requestId", requestID,
			"kind", ce.Kind,
			"error", ce,
		)
		span.RecordError(ce)
		span.SetStatus(codes.Error, string(ce.Kind))
		return nil, ce
	}

	resp.ProcessingTimeMs = o.now().Sub(start).Milliseconds()
	o.countOutcome("success")
	slog.Info("Chat request complete",
		"requestId", requestID,
		"citations", len(resp.Citations),
		"processingTimeMs", resp.ProcessingTimeMs,
	)
	return resp, nil
}

// handleChat is the pipeline body; HandleChat wraps it with metrics and
// outcome logging.
func (o *Orchestrator) handleChat(ctx context.Context, token, externalFolderID, requestID string, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	if req == nil || req.Query == "" {
		return nil, NewChatError(KindInvalidInput, "query is required", nil)
	}
	if token == "" {
		return nil, NewChatError(KindAuthRequired, "missing bearer credential", nil)
	}

	// 1. Each presented credential gets its own verifier and store, so
	// unrelated requests proceed independently and a rejected token can
	// never be repaired with another session's credential.
	verifier := o.verifiers.ForCredential(token)

	// 2. Verify the credential, retrying identity-service outages.
	verifyStart := o.now()
	var principal *identity.Identity
	err := o.policy.Do(ctx, "identity verify", identity.IsUpstreamError, func(ctx context.Context) error {
		var verr error
		principal, verr = verifier.Verify(ctx)
		return verr
	})
	o.observeStage("verify", verifyStart)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return nil, NewChatError(KindAuthRequired, "credential rejected", err)
		}
		if identity.IsUpstreamError(err) {
			return nil, NewChatError(KindUpstreamUnavailable, "identity service unavailable", err)
		}
		return nil, NewChatError(KindAuthRequired, "credential verification failed", err)
	}

	// 3. Resolve the external folder id, retrying registry outages.
	resolveStart := o.now()
	var canonical folder.CanonicalFolder
	err = o.policy.Do(ctx, "folder resolve", isRegistryUnavailable, func(ctx context.Context) error {
		var rerr error
		canonical, rerr = o.resolver.Resolve(ctx, externalFolderID)
		return rerr
	})
	o.observeStage("resolve", resolveStart)
	if err != nil {
		if errors.Is(err, folder.ErrFolderNotFound) {
			return nil, NewChatError(KindNotFound, fmt.Sprintf("folder %q not found", externalFolderID), err)
		}
		return nil, NewChatError(KindUpstreamUnavailable, "folder registry unavailable", err)
	}

	// 4. Retrieve context. An empty result is a normal degraded state;
	// only an embedding failure is fatal here.
	retrieveStart := o.now()
	fragments, err := o.retriever.Retrieve(ctx, req.Query, canonical.ID, req.FileID)
	o.observeStage("retrieve", retrieveStart)
	if err != nil {
		if retrieval.IsEmbeddingError(err) {
			return nil, NewChatError(KindRetrievalError, "could not compute query context", err)
		}
		return nil, NewChatError(KindInternal, "retrieval failed", err)
	}
	if o.metrics != nil {
		o.metrics.FragmentsRetrieved.Observe(float64(len(fragments)))
	}

	// 5. Assemble the prompt. The assembler reports the fragments it
	// rendered; citations come from that list and nothing else.
	systemPrompt, used := o.assembler.Assemble(req.Query, fragments, prompt.TimeContext(o.now()))

	// 6. Complete, retrying rate limits and provider 5xx.
	completeStart := o.now()
	var answer string
	err = o.policy.Do(ctx, "llm complete", llm.IsRetryable, func(ctx context.Context) error {
		var cerr error
		answer, cerr = o.llmClient.Complete(ctx, systemPrompt, req.Query, llm.GenerationParams{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		return cerr
	})
	o.observeStage("complete", completeStart)
	if err != nil {
		return nil, NewChatError(KindCompletionError, "completion provider failed", err)
	}

	citations := make([]datatypes.Citation, 0, len(used))
	for _, f := range used {
		citations = append(citations, datatypes.NewCitation(f))
	}

	slog.Debug("Pipeline complete",
		"requestId", requestID,
		"userId", principal.ID,
		"folderId", canonical.ID,
		"fragmentsUsed", len(used),
	)
	return datatypes.NewChatResponse(requestID, answer, citations, datatypes.GroupFragmentsByDocument(used)), nil
}

// isRegistryUnavailable classifies resolver failures for retry: a
// missing folder is final, an unreachable registry is transient.
func isRegistryUnavailable(err error) bool {
	var ue *folder.UnavailableError
	return errors.As(err, &ue)
}

// observeStage records a stage latency when metrics are enabled.
func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.StageDurationSeconds.WithLabelValues(stage).Observe(o.now().Sub(start).Seconds())
	}
}

// countOutcome bumps the request counter when metrics are enabled.
func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}
}
