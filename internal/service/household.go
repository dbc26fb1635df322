package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/model"
	"github.com/dukerupert/pantrytracker/internal/store"
)

const entityHousehold = "household"

type HouseholdService struct {
	db         *sql.DB
	users      *store.UserStore
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	newCode    func() string
	notifier   Notifier
	logger     *slog.Logger
}

func NewHouseholdService(db *sql.DB, logger *slog.Logger) *HouseholdService {
	return &HouseholdService{
		db:         db,
		users:      store.NewUserStore(db),
		profiles:   store.NewProfileStore(db),
		households: store.NewHouseholdStore(db),
		newCode:    auth.NewJoinCode,
		notifier:   nopNotifier{},
		logger:     logger.With("component", "household"),
	}
}

// SetNotifier routes membership change notifications to n.
func (s *HouseholdService) SetNotifier(n Notifier) {
	s.notifier = n
}

// CurrentHouseholdID returns the caller's household id.
func (s *HouseholdService) CurrentHouseholdID(ctx context.Context) (int64, error) {
	_, hid, err := callerHousehold(ctx, s.profiles)
	return hid, err
}

// CreateHousehold creates a household administered by adminProfileID and moves
// that profile into it. Callers may only create households for themselves.
func (s *HouseholdService) CreateHousehold(ctx context.Context, adminProfileID int64, name string) (*HouseholdDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("household name is required")
	}
	if adminProfileID <= 0 {
		return nil, apperr.Validation("admin user id is required")
	}

	caller, err := ResolveCaller(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	admin, err := s.profiles.GetByID(ctx, adminProfileID)
	if err != nil {
		return nil, apperr.Internal("load profile", err)
	}
	if admin == nil {
		return nil, apperr.NotFound(MsgNoProfile)
	}
	if admin.ID != caller.ID {
		return nil, apperr.Forbidden("you can only create a household for yourself")
	}

	var household *model.Household
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		household, err = createHousehold(ctx, s.households.WithTx(tx), s.newCode, name, admin.ID)
		if err != nil {
			return err
		}
		if err := s.profiles.WithTx(tx).SetHousehold(ctx, admin.ID, &household.ID); err != nil {
			return apperr.Internal("attach household", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("household created", "household_id", household.ID, "admin_profile_id", admin.ID)
	dto := toHouseholdDTO(household, admin.ID)
	return &dto, nil
}

// JoinHousehold moves the caller into the household with the given join code,
// leaving any household they belonged to before.
func (s *HouseholdService) JoinHousehold(ctx context.Context, joinCode string) (*UserDTO, error) {
	joinCode = strings.ToUpper(strings.TrimSpace(joinCode))
	if joinCode == "" {
		return nil, apperr.Validation("join code is required")
	}

	caller, err := ResolveCaller(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	household, err := s.households.GetByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, apperr.Internal("look up join code", err)
	}
	if household == nil {
		return nil, apperr.NotFound("invalid join code")
	}

	if err := s.profiles.SetHousehold(ctx, caller.ID, &household.ID); err != nil {
		return nil, apperr.Internal("attach household", err)
	}
	caller.HouseholdID = &household.ID

	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound(MsgNoProfile)
	}

	s.logger.Info("household joined", "household_id", household.ID, "profile_id", caller.ID)
	s.notifier.Notify(household.ID, entityHousehold, "member_joined", caller.ID)
	dto := toUserDTO(user, caller)
	return &dto, nil
}

// GetMembers lists the caller's household members ordered by first name.
func (s *HouseholdService) GetMembers(ctx context.Context) (*MembersDTO, error) {
	caller, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	household, err := s.households.GetByID(ctx, hid)
	if err != nil {
		return nil, apperr.Internal("load household", err)
	}
	if household == nil {
		return nil, apperr.Validation(MsgNoHousehold)
	}

	members, err := s.households.ListMembers(ctx, hid)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}

	dto := &MembersDTO{
		LoggedInUserID: caller.ID,
		JoinCode:       household.JoinCode,
		AdminUserID:    household.AdminProfileID,
		HouseholdName:  household.Name,
		Members:        make([]MemberDTO, 0, len(members)),
	}
	for _, m := range members {
		dto.Members = append(dto.Members, MemberDTO{
			ID:        m.ProfileID,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Email:     m.Email,
		})
	}
	return dto, nil
}

// RemoveMember takes the target profile out of the caller's household. Only
// the household admin may remove members, and the admin may not remove
// themselves.
func (s *HouseholdService) RemoveMember(ctx context.Context, targetProfileID int64) error {
	caller, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return err
	}
	household, err := s.households.GetByID(ctx, hid)
	if err != nil {
		return apperr.Internal("load household", err)
	}
	if household == nil {
		return apperr.Validation(MsgNoHousehold)
	}
	if !household.IsAdmin(caller.ID) {
		return apperr.Forbidden(MsgNotAdmin)
	}

	target, err := s.households.GetMember(ctx, hid, targetProfileID)
	if err != nil {
		return apperr.Internal("load member", err)
	}
	if target == nil {
		return apperr.NotFound("user is not a member of this household")
	}
	if target.ProfileID == caller.ID {
		return apperr.Validation("the household admin cannot remove themselves")
	}

	if err := s.profiles.SetHousehold(ctx, target.ProfileID, nil); err != nil {
		return apperr.Internal("remove member", err)
	}
	s.logger.Info("member removed", "household_id", hid, "profile_id", target.ProfileID, "by", caller.ID)
	s.notifier.Notify(hid, entityHousehold, "member_removed", target.ProfileID)
	return nil
}
