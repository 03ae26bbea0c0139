package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/middleware"
	"senfret/internal/models"
	"senfret/internal/reviews"
	"senfret/internal/uploads"
)

type reviewApprovalRequest struct {
	IsApproved *bool `json:"isApproved" binding:"required"`
}

func respondReviews(c *gin.Context, items []models.Review) {
	if items == nil {
		items = []models.Review{}
	}
	respondOK(c, http.StatusOK, gin.H{"reviews": items, "count": len(items)})
}

func CreateReview(svc *reviews.Service, files *uploads.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/reviews"

		form, err := readForm(c)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		translataireID, err := primitive.ObjectIDFromHex(form.text("translataireId"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "Transitaire invalide")
			return
		}
		rating, err := form.int("rating")
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		if rating == nil {
			respondFormError(c, route, apperr.Invalid("La note est requise"))
			return
		}
		in := reviews.CreateInput{
			TranslataireID: translataireID,
			Rating:         *rating,
			Comment:        form.text("comment"),
		}
		in.Attachments, err = form.saveFiles(files, reviewAttachments)
		if err != nil {
			respondFormError(c, route, err)
			return
		}

		review, err := svc.Create(c.Request.Context(), middleware.PrincipalFrom(c).User, in)
		if err != nil {
			files.DeleteAll(in.Attachments)
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, gin.H{"message": "Avis ajouté avec succès", "review": review})
	}
}

func ListTranslataireReviews(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/translataire/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		items, err := svc.ListForTranslataire(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondReviews(c, items)
	}
}

func ListMyReviews(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/me"

		items, err := svc.ListByUser(c.Request.Context(), middleware.PrincipalFrom(c).ID())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondReviews(c, items)
	}
}

func UpdateReview(svc *reviews.Service, files *uploads.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/reviews/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		form, err := readForm(c)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		rating, err := form.int("rating")
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in := reviews.UpdateInput{Rating: rating}
		if comment, present := form.get("comment"); present {
			in.Comment = &comment
		}
		in.Attachments, err = form.saveFiles(files, reviewAttachments)
		if err != nil {
			respondFormError(c, route, err)
			return
		}

		review, err := svc.Update(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id, in)
		if err != nil {
			files.DeleteAll(in.Attachments)
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Avis mis à jour avec succès", "review": review})
	}
}

func DeleteReview(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/reviews/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		p := middleware.PrincipalFrom(c)
		if err := svc.Delete(c.Request.Context(), p.Type, p.ID(), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Avis supprimé avec succès"})
	}
}

func SetReviewApproval(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/reviews/:id/approval"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		var req reviewApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		review, err := svc.SetApproval(c.Request.Context(), id, *req.IsApproved)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"review": review})
	}
}
