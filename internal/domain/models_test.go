package domain

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Credential{}.TableName():          "credentials",
		CredentialStatus{}.TableName():    "credential_status",
		Keyword{}.TableName():             "keywords",
		DefaultReply{}.TableName():        "default_replies",
		DefaultReplyRecord{}.TableName():  "default_reply_records",
		Card{}.TableName():                "cards",
		DeliveryRule{}.TableName():        "delivery_rules",
		Item{}.TableName():                "items",
		Order{}.TableName():               "orders",
		AISettings{}.TableName():          "ai_settings",
		AIConversation{}.TableName():      "ai_conversations",
		NotificationChannel{}.TableName(): "notification_channels",
		NotificationBinding{}.TableName(): "notification_bindings",
		SystemSetting{}.TableName():       "system_settings",
		User{}.TableName():                "users",
		UserSetting{}.TableName():         "user_settings",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_AllTablesExist(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()
	for _, mdl := range All() {
		if !m.HasTable(mdl) {
			t.Fatalf("expected table for %T to exist", mdl)
		}
	}
	if !m.HasIndex(&DefaultReplyRecord{}, "ux_default_reply_chat") {
		t.Fatalf("missing reply-once unique index")
	}
	if !m.HasIndex(&Item{}, "ux_item_cred") {
		t.Fatalf("missing item unique index")
	}
}

func TestCredentialDelete_CascadesPerAccountTables(t *testing.T) {
	db := newDomainDB(t)

	cred := Credential{ID: "c1", Value: "unb=1001; _m_h5_tk=abc_123", PauseMinutes: 10}
	if err := db.Create(&cred).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	rows := []any{
		&CredentialStatus{CredentialID: "c1", Enabled: true},
		&Keyword{CredentialID: "c1", Keyword: "包邮", Reply: "全国包邮", Kind: KeywordKindText},
		&DefaultReply{CredentialID: "c1", Enabled: true, ReplyContent: "hi"},
		&DefaultReplyRecord{CredentialID: "c1", ChatID: "chat1"},
		&Item{CredentialID: "c1", ItemID: "900052644277", Title: "T"},
		&Order{OrderID: "2503688126356636370", CredentialID: "c1", Quantity: 1},
		&AISettings{CredentialID: "c1"},
		&AIConversation{CredentialID: "c1", ChatID: "chat1", Role: RoleUser, Content: "便宜点", Intent: IntentPrice},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("create %T: %v", r, err)
		}
	}

	if err := db.Delete(&Credential{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	for _, r := range rows {
		var n int64
		if err := db.Model(r).Where("credential_id = ?", "c1").Count(&n).Error; err != nil {
			t.Fatalf("count %T: %v", r, err)
		}
		if n != 0 {
			t.Fatalf("%T not cascaded: %d rows left", r, n)
		}
	}
}

func TestDefaultReplyRecord_UniquePerChat(t *testing.T) {
	db := newDomainDB(t)
	if err := db.Create(&Credential{ID: "c1", Value: "unb=1"}).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := db.Create(&DefaultReplyRecord{CredentialID: "c1", ChatID: "x"}).Error; err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := db.Create(&DefaultReplyRecord{CredentialID: "c1", ChatID: "x"}).Error; err == nil {
		t.Fatalf("expected unique violation on second record")
	}
}

func TestCheckConstraints(t *testing.T) {
	db := newDomainDB(t)
	if err := db.Create(&Card{Name: "bad", Kind: "video"}).Error; err == nil {
		t.Fatalf("expected card kind check violation")
	}
	if err := db.Create(&Credential{ID: "c1", Value: "unb=1"}).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := db.Create(&AIConversation{CredentialID: "c1", ChatID: "x", Role: "system", Content: "c"}).Error; err == nil {
		t.Fatalf("expected role check violation")
	}
}

func TestOrder_Fresh(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"0":     false,
		"0.00":  false,
		"-3":    false,
		"abc":   false,
		"12.5":  true,
		"¥9.90": true,
		" 1 ":   true,
		"Inf":   false,
		"+Inf":  false,
		"NaN":   false,
		"1e999": false,
	}
	for amount, want := range cases {
		if got := (Order{Amount: amount}).Fresh(); got != want {
			t.Fatalf("Fresh(%q) = %v; want %v", amount, got, want)
		}
	}
}

func TestDeliveryRule_IsMultiSpec(t *testing.T) {
	if (DeliveryRule{SpecName: "颜色"}).IsMultiSpec() {
		t.Fatalf("half-specified rule is not multi-spec")
	}
	if !(DeliveryRule{SpecName: "颜色", SpecValue: "红"}).IsMultiSpec() {
		t.Fatalf("expected multi-spec")
	}
}

func TestAccessToken_Valid(t *testing.T) {
	if (AccessToken{}).Valid() {
		t.Fatalf("zero token must be invalid")
	}
	if !(AccessToken{Value: "tok"}).Valid() {
		t.Fatalf("token with value must be valid")
	}
}
