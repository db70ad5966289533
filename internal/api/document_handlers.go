package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/esign"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

// maxUploadSize leaves room for the multipart envelope around a document.
const maxUploadSize = services.MaxDocumentSize + 1<<20

type uploadURLRequest struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"required"`
	ContentType string `json:"content_type"`
}

type documentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type signatureRequest struct {
	Signers []esign.Signer `json:"signers" validate:"required,min=1,dive"`
}

func (s *APIServer) handleListDocuments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Documents.ListDocuments(currentActor(c), id, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// handleUploadDocument accepts multipart/form-data with the content in
// "file" and the fields type, name, result_id and pre_signed.
func (s *APIServer) handleUploadDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, badRequest("file is required"))
	}

	input := services.UploadDocumentInput{
		Name:        c.FormValue("name", fileHeader.Filename),
		Type:        c.FormValue("type"),
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Size:        fileHeader.Size,
		PreSigned:   c.FormValue("pre_signed") == "true",
	}
	if raw := c.FormValue("result_id"); raw != "" {
		resultID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return respondError(c, badRequest("invalid result_id"))
		}
		rid := uint(resultID)
		input.ResultID = &rid
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, badRequest("failed to read uploaded file"))
	}
	defer file.Close()
	input.Content = file

	doc, err := s.svc.Documents.Upload(c.UserContext(), currentActor(c), id, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (s *APIServer) handleCreateUploadURL(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req uploadURLRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	doc, uploadURL, err := s.svc.Documents.CreateUploadURL(c.UserContext(), currentActor(c), id, req.Name, req.Type, req.ContentType)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"document":   doc,
		"upload_url": uploadURL,
	})
}

func (s *APIServer) handleGetDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	doc, err := s.svc.Documents.GetDocument(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

func (s *APIServer) handleDownloadDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	url, err := s.svc.Documents.DownloadURL(c.UserContext(), currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	if c.QueryBool("redirect", false) {
		return c.Redirect(url, fiber.StatusTemporaryRedirect)
	}
	return c.JSON(fiber.Map{"url": url})
}

func (s *APIServer) handleUpdateDocumentStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req documentStatusRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	doc, err := s.svc.Documents.UpdateStatus(currentActor(c), id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

func (s *APIServer) handleRequestSignature(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req signatureRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	result, err := s.svc.Documents.RequestSignature(c.UserContext(), currentActor(c), id, req.Signers)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *APIServer) handleArchiveDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	doc, err := s.svc.Documents.Archive(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}
