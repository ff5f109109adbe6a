package hierarchical

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"profile-store/core/profile"
	"profile-store/core/storage/mocks"
	"profile-store/core/store"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jsonBody(t *testing.T, rec map[string]any) io.ReadCloser {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return io.NopCloser(bytes.NewReader(b))
}

func listing(keys ...string) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}

func TestObjectKey(t *testing.T) {
	a := New(nil, "profiles", "/users/", nil)
	assert.Equal(t, "users/u1/profile.json", a.ObjectKey("u1"))

	id, ok := a.userIDFromKey("users/u1/profile.json")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	_, ok = a.userIDFromKey("users/u1/avatar.png")
	assert.False(t, ok)
	_, ok = a.userIDFromKey("other/u1/profile.json")
	assert.False(t, ok)

	bare := New(nil, "profiles", "", nil)
	assert.Equal(t, "u1/profile.json", bare.ObjectKey("u1"))
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything).
			Return(jsonBody(t, map[string]any{"name": "Ada", "budget_max": 1200, "is_active": true}), nil)

		got, err := New(m, "profiles", "users", nil).GetProfile(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, 1200, got.BudgetMax)
		assert.True(t, got.IsActive)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})

		got, err := New(m, "profiles", "users", nil).GetProfile(ctx, "u1")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Unavailable", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything).
			Return(nil, errors.New("dial tcp: connection refused"))

		got, err := New(m, "profiles", "users", nil).GetProfile(ctx, "u1")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	})

	t.Run("Corrupt Document", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything).
			Return(io.NopCloser(strings.NewReader(`{"name": "Ada"`)), nil)

		got, err := New(m, "profiles", "users", nil).GetProfile(ctx, "u1")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, store.ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "users/u1/profile.json")
	})
}

func TestPutProfile(t *testing.T) {
	m := new(mocks.Client)
	var written map[string]any
	m.On("PutObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything, mock.Anything,
		minio.PutObjectOptions{ContentType: "application/json"}).
		Run(func(args mock.Arguments) {
			body, _ := io.ReadAll(args.Get(3).(io.Reader))
			_ = json.Unmarshal(body, &written)
		}).
		Return(minio.UploadInfo{}, nil)

	stored, err := New(m, "profiles", "users", nil).PutProfile(context.Background(), "u1", profile.Profile{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "u1", written["user_id"])
	assert.Equal(t, "Ada", written["name"])
}

func TestPutProfiles(t *testing.T) {
	m := new(mocks.Client)
	m.On("PutObject", mock.Anything, "profiles", "users/a/profile.json", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	m.On("PutObject", mock.Anything, "profiles", "users/b/profile.json", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("timeout"))

	err := New(m, "profiles", "users", nil).PutProfiles(context.Background(), []profile.Profile{{UserID: "a"}, {UserID: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch write had 1 errors")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestListUserIDsAndFeed(t *testing.T) {
	m := new(mocks.Client)
	m.On("ListObjects", mock.Anything, "profiles", minio.ListObjectsOptions{Prefix: "users/", Recursive: true}).
		Return(func(context.Context, string, minio.ListObjectsOptions) <-chan minio.ObjectInfo {
			return listing(
				"users/u3/profile.json",
				"users/u1/profile.json",
				"users/u2/profile.json",
				"users/u2/avatar.png",
				"users/u4/profile.json",
			)
		})
	m.On("GetObject", mock.Anything, "profiles", "users/u2/profile.json", mock.Anything).
		Return(jsonBody(t, map[string]any{"is_active": true}), nil)
	m.On("GetObject", mock.Anything, "profiles", "users/u3/profile.json", mock.Anything).
		Return(jsonBody(t, map[string]any{"is_active": true, "is_suspended": true}), nil)
	m.On("GetObject", mock.Anything, "profiles", "users/u4/profile.json", mock.Anything).
		Return(jsonBody(t, map[string]any{"is_active": true}), nil)

	a := New(m, "profiles", "users", nil)

	ids, err := a.ListUserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, ids)

	feed, err := a.ListFeedCandidates(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "u2", feed[0].UserID)
	m.AssertNotCalled(t, "GetObject", mock.Anything, "profiles", "users/u1/profile.json", mock.Anything)
}

func TestListUserIDsError(t *testing.T) {
	m := new(mocks.Client)
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: errors.New("access denied")}
	close(ch)
	m.On("ListObjects", mock.Anything, "profiles", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	_, err := New(m, "profiles", "users", nil).ListUserIDs(context.Background())
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestPing(t *testing.T) {
	m := new(mocks.Client)
	m.On("BucketExists", mock.Anything, "profiles").Return(false, nil).Once()
	m.On("BucketExists", mock.Anything, "profiles").Return(true, nil).Once()

	a := New(m, "profiles", "users", nil)
	assert.ErrorIs(t, a.Ping(context.Background()), store.ErrStoreUnavailable)
	assert.NoError(t, a.Ping(context.Background()))
}
