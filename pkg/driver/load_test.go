package driver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/stretchr/testify/assert"
)

type recordingLoader struct {
	mu     sync.Mutex
	loaded []string
	fail   map[string]bool
}

func (r *recordingLoader) LoadStudy(_ context.Context, study fixture.Study) error {
	if r.fail[study.StudyID] {
		return errors.New("write conflict")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, study.StudyID)
	return nil
}

func TestLoadStudies(t *testing.T) {
	loader := &recordingLoader{}
	studies := []fixture.Study{{StudyID: "pg_1"}, {StudyID: "pg_2"}, {StudyID: "pg_3"}}

	n, err := LoadStudies(context.Background(), loader, studies, 2)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{"pg_1", "pg_2", "pg_3"}, loader.loaded)
}

func TestLoadStudiesReportsFailures(t *testing.T) {
	loader := &recordingLoader{fail: map[string]bool{"pg_2": true}}
	studies := []fixture.Study{{StudyID: "pg_1"}, {StudyID: "pg_2"}, {StudyID: "pg_3"}}

	n, err := LoadStudies(context.Background(), loader, studies, 0)
	assert.Equal(t, 2, n)
	assert.ErrorContains(t, err, "pg_2")
	assert.NotContains(t, err.Error(), "pg_1")
}

func TestLoadStudiesEmpty(t *testing.T) {
	n, err := LoadStudies(context.Background(), &recordingLoader{}, nil, 1)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
