package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"senfret/internal/auth"
	"senfret/internal/middleware"
	"senfret/internal/models"
)

type registerClientRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"prenom" binding:"required"`
	LastName  string `json:"nom" binding:"required"`
	Phone     string `json:"telephone"`
	Company   string `json:"entreprise"`
	Address   string `json:"adresse"`
}

type registerTranslataireRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Password     string   `json:"password" binding:"required,min=6"`
	CompanyName  string   `json:"nomEntreprise" binding:"required"`
	NINEA        string   `json:"ninea" binding:"required"`
	Phone        string   `json:"telephone"`
	ServiceTypes []string `json:"typeServices"`
	Address      string   `json:"adresse"`
	Description  string   `json:"description"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"omitempty,oneof=user translataire admin"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

func sessionBody(s *auth.Session) gin.H {
	return gin.H{
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
		"userType":  s.Principal.Type,
		"user":      s.Principal.Profile(),
	}
}

func RegisterClient(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register/client"

		var req registerClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		user, err := svc.RegisterClient(c.Request.Context(), auth.ClientRegistration{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Company:   req.Company,
			Address:   req.Address,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}

		respondOK(c, http.StatusCreated, gin.H{
			"message": "Inscription réussie, veuillez vérifier votre email",
			"user":    user,
		})
	}
}

func RegisterTranslataire(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register/translataire"

		var req registerTranslataireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		t, err := svc.RegisterTranslataire(c.Request.Context(), auth.TranslataireRegistration{
			Email:        req.Email,
			Password:     req.Password,
			CompanyName:  req.CompanyName,
			NINEA:        req.NINEA,
			Phone:        req.Phone,
			ServiceTypes: req.ServiceTypes,
			Address:      req.Address,
			Description:  req.Description,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}

		respondOK(c, http.StatusCreated, gin.H{
			"message":      "Inscription réussie, votre compte est en attente de validation",
			"translataire": t,
		})
	}
}

func VerifyEmail(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/verify/:token"

		if err := svc.Verify(c.Request.Context(), c.Param("token")); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Email vérifié avec succès"})
	}
}

func Login(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/login"

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		session, err := svc.Login(c.Request.Context(), req.Email, req.Password, models.AccountType(req.UserType))
		if err != nil {
			respondError(c, route, err)
			return
		}

		body := sessionBody(session)
		body["message"] = "Connexion réussie"
		respondOK(c, http.StatusOK, body)
	}
}

func GoogleLogin(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/google"

		var req googleLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		session, err := svc.GoogleLogin(c.Request.Context(), req.IDToken)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, sessionBody(session))
	}
}

func ForgotPassword(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/forgot-password"

		var req forgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{
			"message": "Si un compte existe pour cet email, un lien de réinitialisation a été envoyé",
		})
	}
}

func ResetPassword(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/auth/reset-password/:token"

		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := svc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Mot de passe réinitialisé avec succès"})
	}
}

func Logout(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/logout"

		if err := svc.Logout(c.Request.Context(), middleware.PrincipalFrom(c)); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Déconnexion réussie"})
	}
}

func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.PrincipalFrom(c)
		respondOK(c, http.StatusOK, gin.H{"userType": p.Type, "user": p.Profile()})
	}
}
