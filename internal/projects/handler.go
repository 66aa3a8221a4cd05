package projects

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicing_backend/platform/httpkit"
	"invoicing_backend/platform/validator"
)

// Handler exposes project code validation and admin project management.
type Handler struct {
	repo      *PostgresRepository
	resolver  *Resolver
	validate  *validator.Validator
	threshold int
}

func NewHandler(repo *PostgresRepository, resolver *Resolver, validate *validator.Validator, apiThreshold int) *Handler {
	return &Handler{repo: repo, resolver: resolver, validate: validate, threshold: apiThreshold}
}

type validateCodeResponse struct {
	Match      string     `json:"match"` // exact, fuzzy, or none
	Project    *Candidate `json:"project,omitempty"`
	Suggestion string     `json:"suggestion,omitempty"`
	Distance   int        `json:"distance,omitempty"`
}

// ValidateCode resolves ?code= against the project directory. Fuzzy hits
// come back as a suggestion, never as an accepted project.
func (h *Handler) ValidateCode(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		httpkit.Error(c, http.StatusBadRequest, "code query parameter is required", nil)
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), code, h.threshold)
	if httpkit.HandleError(c, err) {
		return
	}

	switch res.Outcome {
	case OutcomeExact:
		candidate := res.Candidate
		httpkit.OK(c, validateCodeResponse{Match: "exact", Project: &candidate})
	case OutcomeFuzzy:
		httpkit.OK(c, validateCodeResponse{
			Match:      "fuzzy",
			Suggestion: res.Candidate.Code,
			Distance:   res.Distance,
		})
	default:
		httpkit.OK(c, validateCodeResponse{Match: "none"})
	}
}

type createProjectRequest struct {
	Code          string `json:"code" validate:"required"`
	ClientName    string `json:"clientName" validate:"required"`
	ClientCompany string `json:"clientCompany"`
	ClientAddress string `json:"clientAddress" validate:"required"`
	ClientEmail   string `json:"clientEmail" validate:"required,email"`
	ClientPhone   string `json:"clientPhone"`
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	candidate := Candidate{
		Code:          req.Code,
		ClientName:    req.ClientName,
		ClientCompany: req.ClientCompany,
		ClientAddress: req.ClientAddress,
		ClientEmail:   req.ClientEmail,
		ClientPhone:   req.ClientPhone,
	}
	if err := h.repo.Create(c.Request.Context(), &candidate); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, candidate)
}

func (h *Handler) ListProjects(c *gin.Context) {
	candidates, err := h.repo.ListCandidates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	httpkit.OK(c, candidates)
}
