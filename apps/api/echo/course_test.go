package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/testutil"
)

func Test_courseApi(t *testing.T) {
	srv, env := setup(t)
	testutil.CreateCourse(t, env.Courses, "Physics")
	testutil.CreateCourse(t, env.Courses, "Algebra")
	std := testutil.CreateStudent(t, env.Accounts, "Amani", "amani@test.cd")
	lec := testutil.CreateLecturer(t, env.Accounts, "Dr Mwamba", "mwamba@test.cd")
	lecToken := getToken(t, srv, lec.Identity())

	t.Run("query is public", func(t *testing.T) {
		rec := httpTest{path: "/v1/courses"}.run(t, srv)
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode(t, rec)
		assert.Equal(t, "Courses fetched successfully", res.Message)
		var courses []course.Course
		require.NoError(t, json.Unmarshal(res.Data, &courses))
		require.Len(t, courses, 2)
		assert.Equal(t, "Algebra", courses[0].Name)
		assert.Equal(t, "Physics", courses[1].Name)
	})

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"name": "Biology"}`),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingTokenBody),
		},
		{
			name: "students forbidden", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"name": "Biology"}`),
			token: getToken(t, srv, std.Identity()), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, Response{Message: "only lecturers can perform this action"}),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"name": " algebra "}`),
			token: lecToken, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, Response{
				Message: "a course with this name already exists",
				Errors:  map[string]string{"name": "a course with this name already exists"},
			}),
		},
		{
			name: "blank name", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"name": "   "}`),
			token: lecToken, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, Response{
				Message: "invalid request",
				Errors:  map[string]string{"name": "this field is required"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.run(t, srv))
		})
	}

	t.Run("create", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/courses", body: []byte(`{"name": "  Biology "}`), token: lecToken, wantCode: http.StatusCreated}
		rec := tt.run(t, srv)
		checkCodeAndData(t, tt, rec)

		res := decode(t, rec)
		assert.Equal(t, "Course created successfully", res.Message)
		var crs course.Course
		require.NoError(t, json.Unmarshal(res.Data, &crs))
		assert.Equal(t, "Biology", crs.Name)
		assert.NotEmpty(t, crs.ID)
	})
}
