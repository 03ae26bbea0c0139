package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"senfret/internal/apperr"
	"senfret/internal/logging"
	"senfret/internal/middleware"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store"
)

func ListNotifications(s store.NotificationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/notifications"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		unread, err := parseBoolQuery(c, "unread")
		if err != nil {
			respondError(c, route, err)
			return
		}

		p := middleware.PrincipalFrom(c)
		items, total, err := s.ListNotifications(c.Request.Context(), models.NotificationFilter{
			RecipientID:   p.ID(),
			RecipientType: p.Type,
			UnreadOnly:    unread != nil && *unread,
			Page:          page,
			Limit:         limit,
		})
		if err != nil {
			respondError(c, route, apperr.Internal("Erreur lors de la récupération des notifications", err))
			return
		}
		if items == nil {
			items = []models.Notification{}
		}
		respondOK(c, http.StatusOK, gin.H{
			"notifications": items,
			"pagination":    pagination(page, limit, total),
		})
	}
}

func UnreadNotificationCount(s store.NotificationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/notifications/unread-count"

		p := middleware.PrincipalFrom(c)
		count, err := s.CountUnread(c.Request.Context(), p.Type, p.ID())
		if err != nil {
			respondError(c, route, apperr.Internal("Erreur lors du comptage des notifications", err))
			return
		}
		respondOK(c, http.StatusOK, gin.H{"count": count})
	}
}

func MarkNotificationRead(s store.NotificationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/notifications/:id/read"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		p := middleware.PrincipalFrom(c)
		if err := s.MarkRead(c.Request.Context(), id, p.Type, p.ID()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = apperr.NotFound("Notification non trouvée")
			} else {
				err = apperr.Internal("Erreur lors de la mise à jour de la notification", err)
			}
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Notification marquée comme lue"})
	}
}

func MarkAllNotificationsRead(s store.NotificationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/notifications/read-all"

		p := middleware.PrincipalFrom(c)
		updated, err := s.MarkAllRead(c.Request.Context(), p.Type, p.ID())
		if err != nil {
			respondError(c, route, apperr.Internal("Erreur lors de la mise à jour des notifications", err))
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Toutes les notifications ont été lues", "updated": updated})
	}
}

// StreamNotifications pushes the caller's new notifications as Server-Sent
// Events until the client goes away.
func StreamNotifications(hub *notify.Hub, keepAlive time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.PrincipalFrom(c)
		room := models.Room(p.Type, p.ID())
		events, leave := hub.Subscribe(room)
		defer leave()

		logger.Debug().Str("room", room).Msg("stream opened")
		defer logger.Debug().Str(logging.ROUTE, c.FullPath()).Str("room", room).Msg("stream closed")

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		c.SSEvent("ready", gin.H{"room": room})
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case n, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(notify.EventNew, n)
				return true
			case <-ticker.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
	}
}
