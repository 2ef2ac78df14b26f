package i18n

import apperrors "github.com/lcroft/pond/internal/platform/errors"

var messagesEnUS = map[apperrors.Code]string{
	apperrors.CodeUnknown:                 "Something went wrong. Please try again.",
	apperrors.CodeSessionMissing:          "Sign in to interact with the pond.",
	apperrors.CodeSessionInvalid:          "Your session has expired. Sign in again.",
	apperrors.CodeObjectNotFound:          "That fish is no longer in the pond.",
	apperrors.CodeObjectNameEmpty:         "Give your fish a name before releasing it.",
	apperrors.CodeObjectAlreadyCaught:     "Someone beat you to it.",
	apperrors.CodeObjectHeld:              "That fish is currently held by {{.Holder}} and cannot be removed.",
	apperrors.CodeObjectNotOwned:          "Only the fish's creator can remove it.",
	apperrors.CodeVoteInvalidValue:        "A vote must be either +1 or -1.",
	apperrors.CodeAssetInvalidImage:       "The fish image could not be read. Upload a PNG.",
	apperrors.CodeAssetTooLarge:           "The fish image is too large.",
	apperrors.CodeMaintenanceUnauthorized: "Maintenance calls require a valid token.",
	apperrors.CodeStorage:                 "Something went wrong. Please try again.",
}
