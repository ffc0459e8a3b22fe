package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestCreateTaskDefaults(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	community := createCommunity(t, db, owner.ID, "gophers", false)

	task, err := tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "write docs"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusTodo, task.Status)
	assert.Equal(t, model.TaskPriorityMedium, task.Priority)
	assert.Equal(t, owner.ID, task.CreatedByID)

	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreateTaskPermissions(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	viewer := createUser(t, db, "bob")
	stranger := createUser(t, db, "mallory")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	// any member may create a task, but only admins assign one
	_, err := tasks.Create(ctx, viewer.ID, community.ID, TaskReq{Title: "triage"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, viewer.ID, community.ID, TaskReq{Title: "triage", AssignedToID: &owner.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = tasks.Create(ctx, stranger.ID, community.ID, TaskReq{Title: "triage"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "triage", AssignedToID: &viewer.ID})
	require.NoError(t, err)
}

func TestTaskReferenceChecks(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	projects := NewProjectService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	outsider := createUser(t, db, "mallory")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	other := createCommunity(t, db, owner.ID, "rustaceans", false)

	// assignee must be a member
	_, err := tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "x", AssignedToID: &outsider.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	// project must belong to the same community
	foreign, err := projects.Create(ctx, owner.ID, other.ID, ProjectReq{Name: "elsewhere"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "x", ProjectID: &foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskOwnership(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)
	addMember(t, db, community.ID, carol.ID, model.MemberRoleViewer)

	task, err := tasks.Create(ctx, bob.ID, community.ID, TaskReq{Title: "triage"})
	require.NoError(t, err)

	// the author edits their own task
	updated, err := tasks.Update(ctx, bob.ID, community.ID, task.ID, TaskReq{
		Title:  "triage bugs",
		Status: model.TaskStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, updated.Status)

	// another viewer cannot edit someone else's task
	_, err = tasks.Update(ctx, carol.ID, community.ID, task.ID, TaskReq{Title: "mine now"})
	assert.ErrorIs(t, err, ErrForbidden)

	// the author cannot reassign without the assign permission
	_, err = tasks.Update(ctx, bob.ID, community.ID, task.ID, TaskReq{
		Title:        "triage bugs",
		AssignedToID: &carol.ID,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// the owner can reassign; the assignee may then edit
	_, err = tasks.Update(ctx, owner.ID, community.ID, task.ID, TaskReq{
		Title:        "triage bugs",
		AssignedToID: &carol.ID,
	})
	require.NoError(t, err)
	_, err = tasks.Update(ctx, carol.ID, community.ID, task.ID, TaskReq{
		Title:        "triage bugs now",
		AssignedToID: &carol.ID,
	})
	require.NoError(t, err)
}

func TestDeleteTask(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)
	addMember(t, db, community.ID, carol.ID, model.MemberRoleViewer)

	task, err := tasks.Create(ctx, bob.ID, community.ID, TaskReq{Title: "triage"})
	require.NoError(t, err)

	err = tasks.Delete(ctx, carol.ID, community.ID, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// the author deletes their own task
	require.NoError(t, tasks.Delete(ctx, bob.ID, community.ID, task.ID))
	err = tasks.Delete(ctx, bob.ID, community.ID, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// admins delete anyone's
	task, err = tasks.Create(ctx, carol.ID, community.ID, TaskReq{Title: "cleanup"})
	require.NoError(t, err)
	require.NoError(t, tasks.Delete(ctx, owner.ID, community.ID, task.ID))
}

func TestListTasksFiltered(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)

	_, err := tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "a", Priority: model.TaskPriorityHigh})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "b", Status: model.TaskStatusDone})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "c", AssignedToID: &bob.ID})
	require.NoError(t, err)

	all, count, err := tasks.List(ctx, owner.ID, community.ID, TaskFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, "c", all[0].Title)

	done, count, err := tasks.List(ctx, owner.ID, community.ID, TaskFilter{Status: model.TaskStatusDone}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, "b", done[0].Title)

	mine, _, err := tasks.List(ctx, bob.ID, community.ID, TaskFilter{AssignedToID: &bob.ID}, 0, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "c", mine[0].Title)

	// non-members see nothing
	stranger := createUser(t, db, "mallory")
	_, _, err = tasks.List(ctx, stranger.ID, community.ID, TaskFilter{}, 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
