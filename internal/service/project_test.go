package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestCreateProject(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	viewer := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	// viewers cannot create projects
	_, err := projects.Create(ctx, viewer.ID, community.ID, ProjectReq{Name: "website"})
	assert.ErrorIs(t, err, ErrForbidden)

	project, err := projects.Create(ctx, owner.ID, community.ID, ProjectReq{Name: "website", Emoji: "🚀"})
	require.NoError(t, err)

	// the creator is on the roster
	assert.EqualValues(t, 1, countRows(t, db, &model.ProjectMember{},
		"project_id = ? AND user_id = ?", project.ID, owner.ID))
}

func TestProjectMembers(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	outsider := createUser(t, db, "mallory")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)

	project, err := projects.Create(ctx, owner.ID, community.ID, ProjectReq{Name: "website"})
	require.NoError(t, err)

	// only community members can be added
	err = projects.AddMember(ctx, owner.ID, community.ID, project.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, projects.AddMember(ctx, owner.ID, community.ID, project.ID, bob.ID))
	err = projects.AddMember(ctx, owner.ID, community.ID, project.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)

	members, err := projects.ListMembers(ctx, bob.ID, community.ID, project.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, projects.RemoveMember(ctx, owner.ID, community.ID, project.ID, bob.ID))
	err = projects.RemoveMember(ctx, owner.ID, community.ID, project.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProjectDetachesTasks(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	community := createCommunity(t, db, owner.ID, "gophers", false)

	project, err := projects.Create(ctx, owner.ID, community.ID, ProjectReq{Name: "website"})
	require.NoError(t, err)
	task, err := tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "deploy", ProjectID: &project.ID})
	require.NoError(t, err)

	require.NoError(t, projects.Delete(ctx, owner.ID, community.ID, project.ID))

	// the task survives without a project
	var got model.Task
	require.NoError(t, db.First(&got, task.ID).Error)
	assert.Nil(t, got.ProjectID)
	assert.EqualValues(t, 0, countRows(t, db, &model.ProjectMember{}, "project_id = ?", project.ID))
}

func TestProjectCommunityScope(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	other := createUser(t, db, "bob")
	home := createCommunity(t, db, owner.ID, "home", false)
	away := createCommunity(t, db, other.ID, "away", false)
	addMember(t, db, away.ID, owner.ID, model.MemberRoleAdmin)

	project, err := projects.Create(ctx, owner.ID, home.ID, ProjectReq{Name: "website"})
	require.NoError(t, err)

	// reaching the project through the wrong community is a miss
	_, err = projects.Get(ctx, owner.ID, away.ID, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
