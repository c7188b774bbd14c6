package model

import "time"

// SubmissionKind は投稿フォームの種別。
type SubmissionKind string

const (
	SubmissionKindAd   SubmissionKind = "ad"
	SubmissionKindSong SubmissionKind = "song"
)

// AdBudget は広告出稿フォームで選択できる予算帯。
type AdBudget string

const (
	AdBudgetUnder500 AdBudget = "under_500"
	AdBudget500To2k  AdBudget = "500_2000"
	AdBudget2kTo10k  AdBudget = "2000_10000"
	AdBudget10kPlus  AdBudget = "10000_plus"
)

// ValidAdBudgets は受け付ける予算帯の一覧。
var ValidAdBudgets = []AdBudget{AdBudgetUnder500, AdBudget500To2k, AdBudget2kTo10k, AdBudget10kPlus}

// AdSubmission は広告出稿の申し込みを表す。
type AdSubmission struct {
	ID                   string
	UserID               string // 未ログインの場合は空
	BrandName            string
	ContactName          string
	Email                string
	DestinationURL       string
	Budget               AdBudget
	Message              string
	DestinationReachable *bool // リンク確認を実施できなかった場合はnil
	NotifiedAt           *time.Time
	CreatedAt            time.Time
}

// SongSubmission は楽曲投稿を表す。
type SongSubmission struct {
	ID           string
	UserID       string
	ArtistName   string
	SongTitle    string
	Email        string
	StreamingURL string
	Genre        string
	Notes        string
	NotifiedAt   *time.Time
	CreatedAt    time.Time
}
