package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/corralhq/corral/lib/apierr"
	"github.com/corralhq/corral/lib/chain"
	"github.com/corralhq/corral/lib/engine"
	"github.com/corralhq/corral/lib/store"
)

const (
	maxNameLen        = 20
	maxDescriptionLen = 50
)

type groupCreateRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	AdminEthereumAddress string `json:"adminEthereumAddress"`
}

// groupCreateHandler runs the full on-chain group lifecycle: deploy a space through the factory, register it with
// the protocol contract and persist the group with its admin. Two relayed transactions, each awaited and decoded
// from its receipt.
func (s *Server) groupCreateHandler(rw http.ResponseWriter, r *http.Request) {
	var req groupCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	if req.Name == "" || len(req.Name) > maxNameLen {
		s.fail(rw, r, apierr.Validation("Name is required and at most 20 characters", nil))
		return
	}

	if len(req.Description) > maxDescriptionLen {
		s.fail(rw, r, apierr.Validation("Description is at most 50 characters", nil))
		return
	}

	admin, err := parseAddress(req.AdminEthereumAddress)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	user, err := s.db.GetUserByAddress(r.Context(), admin.Hex())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.fail(rw, r, apierr.NotFound("User not found"))
		} else {
			s.fail(rw, r, apierr.Internal(err))
		}

		return
	}

	// deploy the space through the factory
	createData, err := chain.CreateData(admin)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	deployHash, err := s.relayAndWait(r, engine.TxRequest{
		To: s.factory.Hex(), Data: createData, Value: "0", ChainID: s.chainID,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.log.WithFields(logrus.Fields{"event": "SPACE_CREATED", "transactionHash": deployHash}).Info("space deployed")

	deployReceipt, err := s.eng.Receipt(r.Context(), s.chainID, deployHash)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	space, err := chain.DecodeNewSpace(deployReceipt.Logs)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	// register the space with the protocol contract
	registerData, err := chain.RegisterData(space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	registerHash, err := s.relayAndWait(r, engine.TxRequest{
		To: s.corral.Hex(), Data: registerData, Value: "0", ChainID: s.chainID,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.log.WithFields(logrus.Fields{"event": "SPACE_REGISTERED", "transactionHash": registerHash}).Info("space registered")

	registerReceipt, err := s.eng.Receipt(r.Context(), s.chainID, registerHash)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	reg, err := chain.DecodeRegister(registerReceipt.Logs)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	group, err := s.db.AddGroup(r.Context(), store.Group{
		Name:        req.Name,
		Description: req.Description,
		Space:       space.Hex(),
		Invite:      reg.InviteToken.Hex(),
		Shares:      reg.SharesToken.Hex(),
		Treasury:    reg.Treasury.Hex(),
		CreatedBy:   user.ID,
	})
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	member, err := s.db.AddMember(r.Context(), group.ID, user.ID, store.RoleAdmin)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"group": group, "admin": member})
}

type memberAddRequest struct {
	SpaceEthereumAddress  string `json:"spaceEthereumAddress"`
	MemberEthereumAddress string `json:"memberEthereumAddress"`
}

// memberAddHandler joins a member to a space on-chain and persists the membership.
func (s *Server) memberAddHandler(rw http.ResponseWriter, r *http.Request) {
	var req memberAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	space, err := parseAddress(req.SpaceEthereumAddress)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	member, err := parseAddress(req.MemberEthereumAddress)
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	joinData, err := chain.JoinData(member)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	joinHash, err := s.relayAndWait(r, engine.TxRequest{
		To: space.Hex(), Data: joinData, Value: "0", ChainID: s.chainID,
	})
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	s.log.WithFields(logrus.Fields{"event": "SPACE_JOIN", "transactionHash": joinHash}).Info("member joined space")

	group, err := s.db.GetGroupBySpace(r.Context(), space.Hex())
	if err != nil {
		s.fail(rw, r, s.storeErr(err, "Group not found"))
		return
	}

	user, err := s.db.GetUserByAddress(r.Context(), member.Hex())
	if err != nil {
		s.fail(rw, r, s.storeErr(err, "User not found"))
		return
	}

	if _, err := s.db.AddMember(r.Context(), group.ID, user.ID, store.RoleMember); err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.respond(rw, http.StatusOK, map[string]bool{"success": true})
}

// storeErr maps a store failure to the API taxonomy, translating missing rows to not-found.
func (s *Server) storeErr(err error, notFoundMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound(notFoundMsg)
	}

	return apierr.Internal(err)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apierr.Validation("Invalid identifier", map[string]interface{}{
			"expectedFormat": "positive decimal integer",
			"receivedValue":  mux.Vars(r)[name],
		})
	}

	return id, nil
}

func (s *Server) groupGetHandler(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	group, err := s.db.GetGroup(r.Context(), id)
	if err != nil {
		s.fail(rw, r, s.storeErr(err, "Group not found"))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"group": group})
}

func (s *Server) groupListHandler(rw http.ResponseWriter, r *http.Request) {
	groups, err := s.db.GetGroups(r.Context())
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"groups": groups})
}

func (s *Server) groupsOfMemberHandler(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	groups, err := s.db.GetUserGroups(r.Context(), userID)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"groups": groups})
}

// membersHandler enumerates the group's members from the chain, the source of truth for membership.
func (s *Server) membersHandler(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	group, err := s.db.GetGroup(r.Context(), id)
	if err != nil {
		s.fail(rw, r, s.storeErr(err, "Group not found"))
		return
	}

	space, err := parseAddress(group.Space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	members, err := s.reader.Members(r.Context(), space)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	addrs := make([]string, 0, len(members))
	for _, m := range members {
		addrs = append(addrs, m.Hex())
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"members": addrs})
}
