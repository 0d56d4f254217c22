package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is a request-level failure: the request is rejected and nothing is written.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is matches on kind and code so that wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithMessage returns a copy of the error carrying a more specific message.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrEmptyTags            = &Error{Kind: KindValidation, Code: "EmptyTags", Field: "tags", Message: "tags must not be empty"}
	ErrDuplicateTags        = &Error{Kind: KindValidation, Code: "DuplicateTags", Field: "tags", Message: "tags must not repeat"}
	ErrUnknownTag           = &Error{Kind: KindValidation, Code: "UnknownTag", Field: "tags", Message: "tag does not exist"}
	ErrTagsRequired         = &Error{Kind: KindValidation, Code: "TagsRequired", Field: "tags", Message: "tags are required"}
	ErrEmptyIngredients     = &Error{Kind: KindValidation, Code: "EmptyIngredients", Field: "ingredients", Message: "ingredients must not be empty"}
	ErrDuplicateIngredients = &Error{Kind: KindValidation, Code: "DuplicateIngredients", Field: "ingredients", Message: "ingredients must be unique"}
	ErrUnknownIngredient    = &Error{Kind: KindValidation, Code: "UnknownIngredient", Field: "ingredients", Message: "ingredient does not exist"}
	ErrIngredientsRequired  = &Error{Kind: KindValidation, Code: "IngredientsRequired", Field: "ingredients", Message: "ingredients are required"}
	ErrInvalidAmount        = &Error{Kind: KindValidation, Code: "InvalidAmount", Field: "ingredients", Message: "amount must be at least 1"}
	ErrInvalidCookingTime   = &Error{Kind: KindValidation, Code: "InvalidCookingTime", Field: "cooking_time", Message: "cooking_time must be at least 1"}
	ErrNameRequired         = &Error{Kind: KindValidation, Code: "NameRequired", Field: "name", Message: "name is required"}
	ErrTextRequired         = &Error{Kind: KindValidation, Code: "TextRequired", Field: "text", Message: "text is required"}
	ErrImageRequired        = &Error{Kind: KindValidation, Code: "ImageRequired", Field: "image", Message: "image is required"}
	ErrInvalidImage         = &Error{Kind: KindValidation, Code: "InvalidImage", Field: "image", Message: "image must be a base64 encoded picture"}
	ErrInvalidColor         = &Error{Kind: KindValidation, Code: "InvalidColor", Field: "color", Message: "color must be #RRGGBB or a known color name"}
	ErrInvalidSlug          = &Error{Kind: KindValidation, Code: "InvalidSlug", Field: "slug", Message: "slug may contain only letters, digits, hyphens and underscores"}
	ErrSelfFollow           = &Error{Kind: KindValidation, Code: "SelfFollow", Field: "author", Message: "cannot subscribe to yourself"}
	ErrInvalidCredentials   = &Error{Kind: KindValidation, Code: "InvalidCredentials", Message: "invalid credentials"}
	ErrInvalidUser          = &Error{Kind: KindValidation, Code: "InvalidUser", Message: "invalid user data"}
	ErrWrongPassword        = &Error{Kind: KindValidation, Code: "WrongPassword", Field: "current_password", Message: "current password is incorrect"}
	ErrPasswordTooShort     = &Error{Kind: KindValidation, Code: "PasswordTooShort", Field: "new_password", Message: "new password must be at least 8 characters"}

	ErrRelationExists = &Error{Kind: KindConflict, Code: "AlreadyExists", Message: "relation already exists"}
	ErrCatalogExists  = &Error{Kind: KindConflict, Code: "CatalogEntryExists", Message: "entry already exists"}
	ErrUserExists     = &Error{Kind: KindConflict, Code: "UserExists", Field: "email", Message: "user already exists"}

	ErrRelationAbsent     = &Error{Kind: KindNotFound, Code: "RelationAbsent", Message: "relation does not exist"}
	ErrRecipeNotFound     = &Error{Kind: KindNotFound, Code: "RecipeNotFound", Message: "recipe not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "UserNotFound", Message: "user not found"}
	ErrTagNotFound        = &Error{Kind: KindNotFound, Code: "TagNotFound", Message: "tag not found"}
	ErrIngredientNotFound = &Error{Kind: KindNotFound, Code: "IngredientNotFound", Message: "ingredient not found"}

	ErrForbidden = &Error{Kind: KindForbidden, Code: "Forbidden", Message: "only the author may change this recipe"}
)

// KindOf returns the kind of a service error, or 0 for infrastructure errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
