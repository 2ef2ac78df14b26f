package i18n

import apperrors "github.com/lcroft/pond/internal/platform/errors"

var messagesJaJP = map[apperrors.Code]string{
	apperrors.CodeUnknown:                 "エラーが発生しました。もう一度お試しください。",
	apperrors.CodeSessionMissing:          "池に参加するにはログインしてください。",
	apperrors.CodeSessionInvalid:          "セッションの有効期限が切れました。再度ログインしてください。",
	apperrors.CodeObjectNotFound:          "その魚はもう池にいません。",
	apperrors.CodeObjectNameEmpty:         "魚に名前をつけてから放流してください。",
	apperrors.CodeObjectAlreadyCaught:     "先を越されました。",
	apperrors.CodeObjectHeld:              "その魚は{{.Holder}}が釣り上げているため削除できません。",
	apperrors.CodeObjectNotOwned:          "魚を削除できるのは作成者だけです。",
	apperrors.CodeVoteInvalidValue:        "投票は +1 か -1 のいずれかです。",
	apperrors.CodeAssetInvalidImage:       "魚の画像を読み込めませんでした。PNGをアップロードしてください。",
	apperrors.CodeAssetTooLarge:           "魚の画像が大きすぎます。",
	apperrors.CodeMaintenanceUnauthorized: "メンテナンス操作には有効なトークンが必要です。",
	apperrors.CodeStorage:                 "エラーが発生しました。もう一度お試しください。",
}
