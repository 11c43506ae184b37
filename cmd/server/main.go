package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scenecast/api"
	"scenecast/catalog"
	"scenecast/config"
	"scenecast/events"
	"scenecast/feeds"
	"scenecast/generation"
	"scenecast/imagegen"
	"scenecast/kafka"
	"scenecast/media"
	"scenecast/playback"
	"scenecast/session"
	"scenecast/storage"
	"scenecast/timeline"
	"scenecast/transcribe"
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP API port")
	withKafka := flag.Bool("kafka", false, "Consume generation requests from Kafka")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open catalog: %v", err)
	}
	defer cat.Close()

	files, err := storage.NewLocal(cfg.UploadDir, "/api/images/")
	if err != nil {
		log.Fatalf("❌ Failed to prepare upload dir: %v", err)
	}
	images := initializeImages(ctx, cfg, files)
	artifacts := storage.NewArtifactStore(images, cat, nil)

	extractor, err := media.NewFFmpegExtractor()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	whisper, err := transcribe.NewWhisperClient(cfg.OpenAIKey)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	var replicateOpts []imagegen.ReplicateOption
	if cfg.CohereKey != "" {
		refiner, err := imagegen.NewCohereRefiner(cfg.CohereKey, "")
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		replicateOpts = append(replicateOpts, imagegen.WithRefiner(refiner))
	}
	replicate, err := imagegen.NewReplicateClient(cfg.ReplicateToken, replicateOpts...)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	registry := timeline.NewRegistry()
	coordinator, err := generation.NewCoordinator(generation.Adapters{
		Extractor:   extractor,
		Transcriber: whisper,
		Synthesizer: replicate,
		Store:       artifacts,
		Assets:      session.CatalogAssets{Catalog: cat, NotFound: catalog.ErrNotFound},
		Registry:    registry,
	}, generation.Options{
		MaxInFlight: cfg.MaxInFlight,
		Timeouts:    cfg.Timeouts,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create coordinator: %v", err)
	}

	janitor, err := coordinator.StartJanitor(cfg.GCSchedule, cfg.RequestTTL)
	if err != nil {
		log.Fatalf("❌ Failed to start janitor: %v", err)
	}
	defer janitor.Stop()

	tracker := playback.NewTracker()
	defer tracker.Close()
	sess := session.New(tracker, coordinator, registry, cat)

	// Optional event fan-out
	var redis *events.RedisPublisher
	if cfg.RedisAddr != "" {
		redis, err = events.NewRedisPublisher(events.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		if err != nil {
			log.Printf("⚠️ %v (event fan-out disabled)", err)
		} else {
			defer redis.Close()
			go events.Forward(ctx, registry, coordinator, redis)
		}
	}

	// Optional Kafka intake
	var consumer *kafka.Consumer
	if *withKafka {
		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
			Handler: kafka.NewGenerationHandler(coordinator),
		})
		if err != nil {
			log.Printf("⚠️ Failed to create Kafka consumer: %v", err)
		} else if err := consumer.Start(ctx); err != nil {
			log.Printf("⚠️ Failed to start Kafka consumer: %v", err)
		}
	}

	server := api.NewServer(api.Deps{
		AppName:        cfg.AppName,
		Catalog:        cat,
		Coordinator:    coordinator,
		Registry:       registry,
		Session:        sess,
		Uploads:        files,
		Images:         images,
		Artifacts:      artifacts,
		Feeds:          feeds.NewImporter(cat),
		Probe:          media.ProbeDuration,
		MaxUploadBytes: config.MaxUploadBytes,
	})
	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: api.NewRouter(server),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	fmt.Printf("🎧 %s\n", cfg.AppName)
	fmt.Printf("   API:            http://0.0.0.0:%s\n", *port)
	fmt.Printf("   Database:       %s\n", cfg.DatabaseURL)
	fmt.Printf("   Uploads:        %s\n", cfg.UploadDir)
	fmt.Printf("   Max in flight:  %d\n", cfg.MaxInFlight)
	fmt.Printf("   GC schedule:    %s (ttl %v)\n", cfg.GCSchedule, cfg.RequestTTL)
	if cfg.S3Bucket != "" {
		fmt.Printf("   Images:         s3://%s/%s\n", cfg.S3Bucket, cfg.S3Prefix)
	}
	if redis != nil {
		fmt.Printf("   Redis events:   %s\n", cfg.RedisAddr)
	}
	if consumer != nil {
		fmt.Printf("   Kafka topic:    %s\n", cfg.KafkaTopic)
	}
	log.Println("API endpoints available:")
	log.Println("  POST /api/assets")
	log.Println("  GET  /api/assets/:id/timeline")
	log.Println("  POST /api/assets/:id/generate")
	log.Println("  GET  /api/requests/:id")
	log.Println("  POST /api/session/{load,play,pause,seek,position,duration,event,generate}")
	log.Println("  POST /api/feeds/import")
	fmt.Println("\nPress Ctrl+C to shutdown")

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Kafka consumer close error: %v", err)
		}
	}
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		log.Printf("Coordinator shutdown error: %v", err)
	}

	fmt.Println("Server stopped")
}

// initializeImages returns S3 when S3_BUCKET is set and the local upload
// directory otherwise.
func initializeImages(ctx context.Context, cfg config.Config, local *storage.Local) storage.Blobs {
	if cfg.S3Bucket == "" {
		return local
	}

	s3, err := storage.NewS3(ctx, storage.S3Config{
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		Region:       cfg.S3Region,
		Profile:      cfg.S3Profile,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Printf("Warning: failed to init S3 client: %v (storing images locally)", err)
		return local
	}
	return s3
}
