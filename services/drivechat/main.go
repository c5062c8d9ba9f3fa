// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/folder"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/identity"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/observability"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/orchestrator"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/prompt"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/retrieval"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/retry"
	"github.com/AleutianAI/AleutianDriveChat/services/drivechat/routes"
	"github.com/AleutianAI/AleutianDriveChat/services/llm"
	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("drivechat-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient parses WEAVIATE_SERVICE_URL and builds the client.
func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: Trim quotes and whitespace just in case Podman passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		log.Fatal("WEAVIATE_SERVICE_URL is required")
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL is invalid: %q (%v)", weaviateURL, err)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	return client
}

// newEmbedder selects the embedding backend from EMBEDDING_BACKEND.
func newEmbedder() retrieval.Embedder {
	switch os.Getenv("EMBEDDING_BACKEND") {
	case "service":
		embedURL := os.Getenv("EMBEDDING_SERVICE_URL")
		if embedURL == "" {
			log.Fatal("EMBEDDING_BACKEND=service requires EMBEDDING_SERVICE_URL")
		}
		slog.Info("Using embedding service backend", "url", embedURL)
		return retrieval.NewServiceEmbedder(embedURL, nil)
	case "openai", "":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			keyBytes, err := os.ReadFile("/run/secrets/openai_api_key")
			if err != nil {
				log.Fatal("OPENAI_API_KEY environment variable not set and secret not found")
			}
			apiKey = strings.TrimSpace(string(keyBytes))
		}
		slog.Info("Using OpenAI embedding backend")
		return retrieval.NewOpenAIEmbedder(openai.NewClient(apiKey), os.Getenv("EMBEDDING_MODEL_NAME"))
	default:
		log.Fatalf("Unknown EMBEDDING_BACKEND: %q", os.Getenv("EMBEDDING_BACKEND"))
		return nil
	}
}

func main() {
	port := os.Getenv("DRIVECHAT_PORT")
	if port == "" {
		port = "12230"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		log.Fatal("IDENTITY_SERVICE_URL is required")
	}

	registryPath := os.Getenv("FOLDER_REGISTRY_PATH")
	if registryPath == "" {
		registryPath = "/etc/drivechat/folders.yaml"
		slog.Warn("FOLDER_REGISTRY_PATH not set, using default", "path", registryPath)
	}
	registry, err := folder.LoadStaticRegistry(registryPath)
	if err != nil {
		log.Fatalf("Failed to load folder registry: %v", err)
	}

	weaviateClient := newWeaviateClient()

	log.Println("Configuring the LLM Client")
	var llmClient llm.LLMClient
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai", "":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to openai")
		llmClient, err = llm.NewOpenAIClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	identityPool := identity.NewClientPool(identityURL, nil)
	searcher := retrieval.NewWeaviateSearcher(weaviateClient)
	orch := orchestrator.NewOrchestrator(
		orchestrator.VerifierPoolFunc(func(token string) orchestrator.IdentityVerifier {
			return identityPool.ForCredential(token)
		}),
		folder.NewResolver(registry),
		retrieval.NewRetriever(newEmbedder(), searcher, retrieval.DefaultConfig()),
		prompt.NewAssembler(),
		llmClient,
		retry.DefaultPolicy(),
		observability.DefaultMetrics,
	)

	chatTimeout := time.Duration(0)
	if secs := os.Getenv("CHAT_REQUEST_TIMEOUT_SECONDS"); secs != "" {
		n, err := strconv.Atoi(secs)
		if err != nil || n < 1 {
			slog.Warn("Invalid CHAT_REQUEST_TIMEOUT_SECONDS, using default", "value", secs)
		} else {
			chatTimeout = time.Duration(n) * time.Second
		}
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("drivechat-service"))

	routes.SetupRoutes(router, orch, folder.NewResolver(registry), searcher, chatTimeout)
	log.Println("started up the container")

	log.Println("Starting the drivechat server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
