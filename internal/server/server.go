package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/overhill/internal/backup"
	"github.com/dukerupert/overhill/internal/email"
	"github.com/dukerupert/overhill/internal/events"
	"github.com/dukerupert/overhill/internal/handler"
	"github.com/dukerupert/overhill/internal/identity"
	"github.com/dukerupert/overhill/internal/invite"
	"github.com/dukerupert/overhill/internal/middleware"
	"github.com/dukerupert/overhill/internal/push"
	"github.com/dukerupert/overhill/internal/store"
)

type Server struct {
	db             *sql.DB
	hub            *events.Hub
	bus            *events.Bus
	invitationH    *handler.InvitationHandler
	pushH          *handler.PushHandler
	identityClient *identity.Client
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	logger         *slog.Logger
}

func New(db *sql.DB, identityClient *identity.Client, emailClient *email.Client, baseURL string, backupCfg backup.Config, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := events.NewHub(logger.With("component", "websocket"))
	bus := events.NewBus(hub, logger.With("component", "events"))

	invitationStore := store.NewInvitationStore(db)
	tenantStore := store.NewTenantStore(db)
	leaseStore := store.NewLeaseStore(db)
	unitStore := store.NewUnitStore(db)
	propertyStore := store.NewPropertyStore(db)
	pushStore := store.NewPushStore(db)

	backupMgr := backup.NewManager(backupCfg, db, func(s backup.Status) {
		payload := map[string]any{"state": string(s.State), "in_progress": s.InProgress}
		if s.Error != "" {
			payload["error"] = s.Error
		}
		bus.Emit("backup.status", payload)
	})

	validator := invite.NewValidator(invitationStore, logger.With("component", "validator"))
	saga := invite.NewSaga(validator, invitationStore, tenantStore, leaseStore, identityClient, bus, logger.With("component", "saga"))
	resender := invite.NewResender(tenantStore, leaseStore, unitStore, propertyStore, identityClient, invitationStore, bus, baseURL, logger.With("component", "resend"))

	// Invitation emails ride the bus so resends never block on SMTP/API latency.
	emailLogger := logger.With("component", "email")
	bus.Subscribe(invite.EventResent, func(msg events.Message) {
		to, _ := msg.Payload["email"].(string)
		url, _ := msg.Payload["url"].(string)
		propertyName, _ := msg.Payload["property_name"].(string)
		expiresAt := time.Now().UTC()
		if raw, ok := msg.Payload["expires_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				expiresAt = t
			}
		}
		if err := emailClient.SendInvitation(to, url, propertyName, expiresAt); err != nil {
			emailLogger.Error("send invitation email", "to", to, "error", err)
		}
	})

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))

		// Tell the inviting owner their invitation was redeemed.
		pushLogger := logger.With("component", "push")
		bus.Subscribe(invite.EventAccepted, func(msg events.Message) {
			ownerID, ok := msg.Payload["notify_user_id"].(int64)
			if !ok || ownerID == 0 {
				return
			}
			body := "A tenant accepted their invitation"
			if name, ok := msg.Payload["property_name"].(string); ok && name != "" {
				body = "A tenant accepted their invitation to " + name
			}
			subs, err := pushStore.ListByUser(ownerID)
			if err != nil {
				pushLogger.Error("list push subscriptions", "user_id", ownerID, "error", err)
				return
			}
			for i := range subs {
				err := pushSvc.Send(&subs[i], push.Payload{
					Title: "Invitation accepted",
					Body:  body,
					Tag:   "invitation-accepted",
				})
				if errors.Is(err, push.ErrExpired) {
					if err := pushStore.DeleteByEndpoint(subs[i].Endpoint); err != nil {
						pushLogger.Error("prune expired subscription", "error", err)
					}
					continue
				}
				if err != nil {
					pushLogger.Error("send push", "user_id", ownerID, "error", err)
				}
			}
		})
	}

	return &Server{
		db:             db,
		hub:            hub,
		bus:            bus,
		invitationH:    handler.NewInvitationHandler(validator, saga, resender, logger.With("component", "invitation")),
		pushH:          pushH,
		identityClient: identityClient,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		logger:         logger,
	}
}

// Bus returns the event bus for additional listeners.
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/invitations/validate", s.rateLimitedHandler(s.invitationH.Validate))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.identityClient)
	outerMux.Handle("/", authMiddleware(protectedMux))

	h := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.RequestID(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/invitations/accept", s.invitationH.Accept)
	mux.HandleFunc("POST /api/tenants/{id}/invitation/resend", s.invitationH.Resend)

	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", events.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
