// Package surveyfs serves survey documents from a directory of YAML
// files, one file per survey, named <survey_id>.yaml.
package surveyfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/switchback-sms/switchback/pkg/domain"
)

// Source implements ports.DefinitionSource over a directory.
type Source struct {
	dir string
}

// New creates a filesystem source rooted at dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Read returns the raw YAML for a survey id. The id is restricted to a
// safe character set upstream, but we still refuse path separators here.
func (s *Source) Read(surveyID string) ([]byte, error) {
	if strings.ContainsAny(surveyID, `/\`) || surveyID == "" {
		return nil, domain.ErrSurveyNotFound
	}
	path := filepath.Join(s.dir, surveyID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSurveyNotFound
		}
		return nil, fmt.Errorf("read survey %q: %w", surveyID, err)
	}
	return data, nil
}

// IDs lists the survey ids available in the directory, sorted.
func (s *Source) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}
