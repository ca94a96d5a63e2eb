package course

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	gradeScaleTag  = "gradescale"
	gradeScaleText = fmt.Sprintf("grade must be at most %d", core.Conf.GradeScaleMax)

	courseEmojiTag  = "courseemoji"
	courseEmojiText = fmt.Sprintf("emoji must be at most %d", EmojiCount-1)
)

func init() {
	_ = core.Validate.RegisterValidation(gradeScaleTag, gradeScaleValidation)
	core.RegisterCustomTranslation(gradeScaleTag, gradeScaleText)
	_ = core.Validate.RegisterValidation(courseEmojiTag, courseEmojiValidation)
	core.RegisterCustomTranslation(courseEmojiTag, courseEmojiText)
}

// gradeScaleValidation caps grades at the configured scale maximum.
func gradeScaleValidation(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= int64(core.Conf.GradeScaleMax)
}

// courseEmojiValidation keeps emoji picks inside the client catalog.
func courseEmojiValidation(fl validator.FieldLevel) bool {
	return fl.Field().Int() < EmojiCount
}
