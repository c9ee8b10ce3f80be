package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// RepoRef names one remote repository. Both parts end up in request paths.
type RepoRef struct {
	Owner string
	Repo  string
}

func (r *RepoRef) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Owner, validation.Required, validation.Match(ownerPattern)),
		validation.Field(&r.Repo, validation.Required, validation.Match(repoPattern), validation.By(notDotsOnly)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func notDotsOnly(value interface{}) error {
	s, _ := value.(string)
	if s != "" && strings.Trim(s, ".") == "" {
		return errors.New("must not consist of dots only")
	}
	return nil
}
