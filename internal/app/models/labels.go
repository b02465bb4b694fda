package models

// LabelKind selects which vocabulary a label lookup reads from.
type LabelKind string

const (
	LabelFamily         LabelKind = "family"
	LabelCampaignStatus LabelKind = "campaign_status"
	LabelConsentStatus  LabelKind = "consent_status"
	LabelFollowup       LabelKind = "followup"
	LabelFeedStatus     LabelKind = "feed_status"
)

// Locale is a display language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleVI Locale = "vi"
)

// DefaultLocale is used for unknown locales.
const DefaultLocale = LocaleEN

var labels = map[LabelKind]map[string]map[Locale]string{
	LabelFamily: {
		string(FamilyHealthCheckup): {LocaleEN: "Health checkup", LocaleVI: "Khám sức khỏe"},
		string(FamilyVaccination):   {LocaleEN: "Vaccination", LocaleVI: "Tiêm chủng"},
	},
	LabelCampaignStatus: {
		string(CampaignPlanned):    {LocaleEN: "Planned", LocaleVI: "Đã lên kế hoạch"},
		string(CampaignInProgress): {LocaleEN: "In progress", LocaleVI: "Đang diễn ra"},
		string(CampaignCompleted):  {LocaleEN: "Completed", LocaleVI: "Đã hoàn thành"},
		string(CampaignCancelled):  {LocaleEN: "Cancelled", LocaleVI: "Đã hủy"},
	},
	LabelConsentStatus: {
		string(ConsentPending):   {LocaleEN: "Awaiting consent", LocaleVI: "Chờ xác nhận"},
		string(ConsentApproved):  {LocaleEN: "Approved", LocaleVI: "Đã đồng ý"},
		string(ConsentRejected):  {LocaleEN: "Declined", LocaleVI: "Từ chối"},
		string(ConsentCompleted): {LocaleEN: "Completed", LocaleVI: "Đã hoàn thành"},
	},
	LabelFollowup: {
		string(FollowupRequired):    {LocaleEN: "Follow-up required", LocaleVI: "Cần theo dõi"},
		string(FollowupNotRequired): {LocaleEN: "No follow-up", LocaleVI: "Bình thường"},
	},
	LabelFeedStatus: {
		string(FeedPending):   {LocaleEN: "Pending", LocaleVI: "Chờ phản hồi"},
		string(FeedApproved):  {LocaleEN: "Approved", LocaleVI: "Đã đồng ý"},
		string(FeedCompleted): {LocaleEN: "Completed", LocaleVI: "Đã hoàn thành"},
	},
}

// ParseLocale maps a locale tag such as "vi-VN" onto a supported Locale.
func ParseLocale(raw string) Locale {
	tag := normalize(raw)
	if len(tag) >= 2 {
		switch Locale(tag[:2]) {
		case LocaleVI:
			return LocaleVI
		case LocaleEN:
			return LocaleEN
		}
	}
	return DefaultLocale
}

// DisplayLabel returns the human label for value in the given vocabulary.
// Unknown values fall back to the raw identity; unknown locales to English.
func DisplayLabel(kind LabelKind, value string, locale Locale) string {
	byValue, ok := labels[kind][value]
	if !ok {
		return value
	}
	if label, ok := byValue[locale]; ok {
		return label
	}
	return byValue[DefaultLocale]
}

// LabelTable returns every label of every vocabulary for one locale.
func LabelTable(locale Locale) map[LabelKind]map[string]string {
	out := make(map[LabelKind]map[string]string, len(labels))
	for kind, values := range labels {
		out[kind] = make(map[string]string, len(values))
		for value := range values {
			out[kind][value] = DisplayLabel(kind, value, locale)
		}
	}
	return out
}
