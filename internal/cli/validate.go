package cli

import (
	"fmt"

	"github.com/fpang/create-thumbnail/internal/thumbnail"
	"github.com/spf13/cobra"
)

// Dimension flag names.
const (
	WidthFlag  = "width"
	HeightFlag = "height"
)

// AddDimensionFlags registers --width and --height on cmd and requires at least one of them.
func AddDimensionFlags(cmd *cobra.Command) {
	cmd.Flags().Int(WidthFlag, 0, "Maximum width of the thumbnail in pixels")
	cmd.Flags().Int(HeightFlag, 0, "Maximum height of the thumbnail in pixels")
	cmd.MarkFlagsOneRequired(WidthFlag, HeightFlag)
}

// ConstraintFromFlags builds the bounding constraint from the dimension flags
// the user actually set. Flags left at their zero default are treated as absent;
// an explicit --width=0 is kept so validation can reject it.
func ConstraintFromFlags(cmd *cobra.Command) (thumbnail.Constraint, error) {
	var c thumbnail.Constraint

	if cmd.Flags().Changed(WidthFlag) {
		w, err := cmd.Flags().GetInt(WidthFlag)
		if err != nil {
			return c, fmt.Errorf("invalid --%s: %w", WidthFlag, err)
		}
		c.MaxWidth = &w
	}

	if cmd.Flags().Changed(HeightFlag) {
		h, err := cmd.Flags().GetInt(HeightFlag)
		if err != nil {
			return c, fmt.Errorf("invalid --%s: %w", HeightFlag, err)
		}
		c.MaxHeight = &h
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
