package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/corralhq/corral/lib/apierr"
	"github.com/corralhq/corral/lib/store"
)

type userCreateRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	EthereumAddress string `json:"ethereumAddress"`
	ProfileImageURL string `json:"profileImageUrl"`
}

func (s *Server) userCreateHandler(rw http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	if req.Username == "" || req.Email == "" {
		s.fail(rw, r, apierr.Validation("Username and email are required", nil))
		return
	}

	addr, err := parseAddress(req.EthereumAddress)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	user, err := s.db.AddUser(r.Context(), store.User{
		Username:        req.Username,
		Email:           req.Email,
		EthereumAddress: addr.Hex(),
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.fail(rw, r, apierr.Validation("User already exists", map[string]interface{}{
				"ethereumAddress": addr.Hex(),
			}))
		} else {
			s.fail(rw, r, apierr.Internal(err))
		}

		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"user": user})
}

// userGetHandler looks a user up by ethereum address, or by numeric id when no address is given.
func (s *Server) userGetHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		user store.User
		err  error
	)

	switch {
	case q.Get("ethereumAddress") != "":
		addr, perr := parseAddress(q.Get("ethereumAddress"))
		if perr != nil {
			s.fail(rw, r, perr)
			return
		}

		user, err = s.db.GetUserByAddress(r.Context(), addr.Hex())
	case q.Get("id") != "":
		id, perr := strconv.ParseInt(q.Get("id"), 10, 64)
		if perr != nil || id <= 0 {
			s.fail(rw, r, apierr.Validation("Invalid identifier", map[string]interface{}{
				"expectedFormat": "positive decimal integer",
				"receivedValue":  q.Get("id"),
			}))

			return
		}

		user, err = s.db.GetUser(r.Context(), id)
	default:
		s.fail(rw, r, apierr.Validation("ethereumAddress or id is required as a query parameter", nil))
		return
	}

	if err != nil {
		s.fail(rw, r, s.storeErr(err, "User not found"))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"user": user})
}
