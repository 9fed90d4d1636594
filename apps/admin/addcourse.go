package main

import (
	"context"

	"github.com/trezcool/malalamiko/core/course"
)

func (cli *commandLine) addCourse(ctx context.Context, name string) (course.Course, error) {
	return cli.courseSvc.Create(ctx, course.NewCourse{Name: name})
}
