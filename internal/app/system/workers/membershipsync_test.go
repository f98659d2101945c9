package workers

import (
	"testing"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func user(role models.Role) models.User {
	return models.User{ID: primitive.NewObjectID(), Role: role}
}

func TestExpectedMembersByRole(t *testing.T) {
	mentor := user(models.RoleMentor)
	mentee := user(models.RoleMentee)
	admin := user(models.RoleOrgAdmin)
	operator := user(models.RolePlatformOperator)
	roster := []models.User{mentor, mentee, admin, operator}

	mentors := ExpectedMembers(roster, models.GroupDefaultMentors, nil)
	if !SameMemberSet(mentors, []primitive.ObjectID{mentor.ID, admin.ID}) {
		t.Errorf("mentor side = %v, want mentor and admin", mentors)
	}

	mentees := ExpectedMembers(roster, models.GroupDefaultMentees, nil)
	if !SameMemberSet(mentees, []primitive.ObjectID{mentee.ID, admin.ID}) {
		t.Errorf("mentee side = %v, want mentee and admin", mentees)
	}
}

func TestExpectedMembersKeepsInvitedOperators(t *testing.T) {
	mentor := user(models.RoleMentor)
	operator := user(models.RolePlatformOperator)
	roster := []models.User{mentor, operator}

	// Not in the group yet: stays out.
	got := ExpectedMembers(roster, models.GroupDefaultMentors, nil)
	if SameMemberSet(got, []primitive.ObjectID{mentor.ID, operator.ID}) {
		t.Error("operator joined a default group without invitation")
	}

	// Already present (invited by an admin): a reconcile keeps them.
	current := map[primitive.ObjectID]struct{}{operator.ID: {}}
	got = ExpectedMembers(roster, models.GroupDefaultMentors, current)
	if !SameMemberSet(got, []primitive.ObjectID{mentor.ID, operator.ID}) {
		t.Errorf("invited operator evicted by reconcile: %v", got)
	}
}

func TestExpectedMembersDropsDemotedUser(t *testing.T) {
	demoted := user(models.RoleMentee) // was a mentor, role already changed
	still := user(models.RoleMentor)
	roster := []models.User{demoted, still}
	current := map[primitive.ObjectID]struct{}{demoted.ID: {}, still.ID: {}}

	got := ExpectedMembers(roster, models.GroupDefaultMentors, current)
	if !SameMemberSet(got, []primitive.ObjectID{still.ID}) {
		t.Errorf("demoted user kept mentor-group membership: %v", got)
	}
	// And the mentee side picks them up.
	got = ExpectedMembers(roster, models.GroupDefaultMentees, nil)
	if !SameMemberSet(got, []primitive.ObjectID{demoted.ID}) {
		t.Errorf("demoted user missing from mentee group: %v", got)
	}
}

func TestExpectedMembersIsIdempotent(t *testing.T) {
	roster := []models.User{user(models.RoleMentor), user(models.RoleMentee), user(models.RoleOrgAdmin)}

	first := ExpectedMembers(roster, models.GroupDefaultMentors, nil)
	asSet := make(map[primitive.ObjectID]struct{}, len(first))
	for _, id := range first {
		asSet[id] = struct{}{}
	}
	second := ExpectedMembers(roster, models.GroupDefaultMentors, asSet)
	if !SameMemberSet(first, second) {
		t.Errorf("second pass changed the member set: %v vs %v", first, second)
	}
}

func TestSameMemberSet(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	if !SameMemberSet([]primitive.ObjectID{a, b}, []primitive.ObjectID{b, a}) {
		t.Error("order must not matter")
	}
	if !SameMemberSet([]primitive.ObjectID{a, a, b}, []primitive.ObjectID{a, b}) {
		t.Error("duplicates must not matter")
	}
	if SameMemberSet([]primitive.ObjectID{a}, []primitive.ObjectID{a, b}) {
		t.Error("different sets reported equal")
	}
	if !SameMemberSet(nil, nil) {
		t.Error("two empty sets are equal")
	}
}
