package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	api "mailbridge/cmd/api"
	maildomain "mailbridge/internal/mail/domain"
	mailRepo "mailbridge/internal/mail/repository"
	"mailbridge/internal/mail/scheduler"
	mailUsecase "mailbridge/internal/mail/usecase"
	"mailbridge/internal/notification"
	"mailbridge/pkg/config"
	"mailbridge/pkg/database"
	"mailbridge/pkg/fcm"
	"mailbridge/pkg/firebaseapp"
	"mailbridge/pkg/gmail"
	"mailbridge/pkg/imap"
	"mailbridge/pkg/objectstorage"
	"mailbridge/pkg/smtp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize relational store
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := mailRepo.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize document store (Firestore shares the Firebase app with FCM)
	firebaseApp, err := firebaseapp.NewApp(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.ProjectID)
	if err != nil {
		log.Fatal("Failed to initialize Firebase:", err)
	}
	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firestore:", err)
	}
	defer firestoreClient.Close()

	relational := mailRepo.NewGormMailRepository(db)
	store := mailRepo.NewDualWriteStore(relational, mailRepo.NewFirestoreMailRepository(firestoreClient), cfg.Sync.StoreAttempts)

	// Initialize mail provider
	var (
		transport    maildomain.MailTransport
		feed         maildomain.ChangeFeed
		watcher      maildomain.MailboxWatcher
		gmailService *gmail.Service
	)
	address := cfg.Mailbox.Address

	if cfg.Mailbox.Provider == config.ProviderGmail {
		gmailService, err = gmail.NewService(ctx, gmail.Config{
			ClientID:         cfg.Google.ClientID,
			ClientSecret:     cfg.Google.ClientSecret,
			RefreshToken:     cfg.Google.RefreshToken,
			PageSize:         cfg.Sync.PageSize,
			FetchConcurrency: cfg.Sync.FetchConcurrency,
		})
		if err != nil {
			log.Fatal("Failed to initialize Gmail service:", err)
		}
		if address == "" {
			address, err = gmailService.ProfileAddress(ctx)
			if err != nil {
				log.Fatal("Failed to resolve mailbox address:", err)
			}
		}
	}

	mailbox := maildomain.NewMailbox(address, cfg.Mailbox.Name)
	log.Printf("Mailbox %s using provider %s", mailbox.Address, cfg.Mailbox.Provider)

	switch cfg.Mailbox.Provider {
	case config.ProviderGmail:
		gmailService.SetFrom(mailbox.Formatted())
		transport, feed, watcher = gmailService, gmailService, gmailService
	case config.ProviderIMAP:
		feed = imap.NewService(imap.Config{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			UseTLS:   cfg.IMAP.UseTLS,
			Mailbox:  cfg.IMAP.Mailbox,
			PageSize: cfg.Sync.PageSize,
		})
		transport = smtp.NewSender(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, mailbox.Formatted())
	}

	// Initialize use case (dependency injection)
	mailUsecaseInstance := mailUsecase.NewMailUsecase(store, relational, transport, feed, mailbox, mailUsecase.Options{
		FallbackWindow: cfg.Sync.FallbackWindow,
	})

	if watcher != nil && cfg.Google.PubSubTopic != "" {
		mailUsecaseInstance.SetWatcher(watcher, cfg.Google.PubSubTopic)
	}

	if cfg.Archive.Bucket != "" {
		archive, err := objectstorage.NewArchive(objectstorage.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			log.Printf("[WARN] Failed to initialize attachment archive: %v", err)
		} else {
			mailUsecaseInstance.SetAttachmentArchive(archive)
		}
	}

	// Push notifications for synced mail (optional)
	if cfg.Firebase.FCMTopic != "" {
		fcmClient, err := fcm.NewClient(ctx, firebaseApp)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			mailUsecaseInstance.SetNotifier(notification.NewMailNotifier(fcmClient, cfg.Firebase.FCMTopic))
		}
	}

	// Gmail push notifications (Pub/Sub), only for the gmail provider
	if cfg.Mailbox.Provider == config.ProviderGmail && cfg.Google.ProjectID != "" && cfg.Google.PubSubTopic != "" {
		notifService, err := notification.NewService(ctx, cfg.Google.ProjectID, cfg.Google.PubSubTopic, cfg.Google.CredentialsFile, mailbox.Address, mailUsecaseInstance)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			defer notifService.Close()
			go notifService.Start(ctx)
		}
	} else {
		log.Printf("[WARN] Pub/Sub not configured, push-triggered sync disabled")
	}

	syncScheduler := scheduler.NewSyncScheduler(mailUsecaseInstance, cfg.Sync.Interval)
	syncScheduler.Start()
	defer syncScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(mailUsecaseInstance, cfg)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] HTTP shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
