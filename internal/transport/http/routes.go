package http

import (
	"errors"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"assistant-engine/handler"
	"assistant-engine/internal/usecase"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
}

// chat accepts either JSON or a multipart form with fields ownerScope,
// sessionId, message, singleShot and any number of "files".
func (s *Server) chat(c *gin.Context) {
	var req handler.ChatRequest
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			s.fail(c, invalid("invalid_form", err))
			return
		}
		req.OwnerScope = c.PostForm("ownerScope")
		req.SessionID = c.PostForm("sessionId")
		req.Message = c.PostForm("message")
		req.SingleShot, _ = strconv.ParseBool(c.PostForm("singleShot"))
		for _, fh := range form.File["files"] {
			data, err := s.readFile(fh)
			if err != nil {
				s.fail(c, err)
				return
			}
			req.Files = append(req.Files, handler.FileUpload{Filename: fh.Filename, Data: data})
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}

	out, err := s.svc.Chat.Submit(c.Request.Context(), req.Input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, handler.NewChatResponse(out))
}

func (s *Server) report(c *gin.Context) {
	doc, err := s.svc.Reports.Render(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", handler.ContentDisposition(doc.Filename))
	c.Data(nethttp.StatusOK, doc.ContentType, doc.Body)
}

// ingest accepts JSON or a multipart form with "ownerScope" and "file".
func (s *Server) ingest(c *gin.Context) {
	var req handler.IngestRequest
	if isMultipart(c) {
		fh, err := c.FormFile("file")
		if err != nil {
			s.fail(c, invalid("missing_file", err))
			return
		}
		data, err := s.readFile(fh)
		if err != nil {
			s.fail(c, err)
			return
		}
		req = handler.IngestRequest{OwnerScope: c.PostForm("ownerScope"), Filename: fh.Filename, Data: data}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}

	out, err := s.svc.Ingest.Ingest(c.Request.Context(), usecase.IngestInput{
		OwnerScope: req.OwnerScope,
		Filename:   req.Filename,
		Data:       req.Data,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, handler.IngestResponse{ChunksProduced: out.ChunksProduced, ChunksIndexed: out.ChunksIndexed})
}

func (s *Server) ask(c *gin.Context) {
	var req handler.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}
	out, err := s.svc.Ask.Ask(c.Request.Context(), usecase.AskInput{OwnerScope: req.OwnerScope, Question: req.Question})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, handler.NewAskResponse(out))
}

func (s *Server) contact(c *gin.Context) {
	var req handler.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}
	if err := s.svc.Contact.Send(c.Request.Context(), req.Form()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"message": "Form submitted successfully"})
}

func (s *Server) listSessions(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.Query("includeArchived"))
	list, err := s.svc.Sessions.List(c.Request.Context(), c.Query("ownerScope"), includeArchived)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, handler.SessionsResponse{Sessions: list})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.svc.Sessions.Get(c.Request.Context(), c.Query("ownerScope"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, sess)
}

func (s *Server) renameSession(c *gin.Context) {
	var req handler.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}
	sess, err := s.svc.Sessions.Rename(c.Request.Context(), req.OwnerScope, c.Param("id"), req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, sess)
}

func (s *Server) archiveAll(c *gin.Context) {
	var req handler.OwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("invalid_json", err))
		return
	}
	n, err := s.svc.Sessions.ArchiveAll(c.Request.Context(), req.OwnerScope)
	s.count(c, n, err)
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.svc.Sessions.Delete(c.Request.Context(), c.Query("ownerScope"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (s *Server) deleteAllSessions(c *gin.Context) {
	n, err := s.svc.Sessions.DeleteAll(c.Request.Context(), c.Query("ownerScope"))
	s.count(c, n, err)
}

func (s *Server) purgeIndex(c *gin.Context) {
	n, err := s.svc.Sessions.PurgeIndex(c.Request.Context(), c.Query("ownerScope"))
	s.count(c, n, err)
}

func (s *Server) count(c *gin.Context, n int, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, handler.CountResponse{Count: n})
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(handler.StatusFor(err), handler.ErrorBody(err))
}

func (s *Server) readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.maxUpload {
		return nil, invalid("file_too_large", errors.New(fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, invalid("unreadable_file", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return nil, invalid("unreadable_file", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, invalid("file_too_large", errors.New(fh.Filename))
	}
	return data, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func invalid(reason string, err error) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: reason, Err: err}
}
