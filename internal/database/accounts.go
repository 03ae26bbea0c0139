package database

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
	"senfret/internal/store"
)

var accountTypes = []models.AccountType{models.AccountUser, models.AccountTranslataire, models.AccountAdmin}

func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, t := range accountTypes {
		count, err := s.collection(accountCollection(t)).CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) NineaTaken(ctx context.Context, ninea string) (bool, error) {
	count, err := s.collection(TranslatairesCollection).CountDocuments(ctx, bson.M{"ninea": ninea})
	return count > 0, err
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.collection(UsersCollection).InsertOne(ctx, u)
	return mapError(err)
}

func (s *Store) InsertTranslataire(ctx context.Context, t *models.Translataire) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := s.collection(TranslatairesCollection).InsertOne(ctx, t)
	return mapError(err)
}

func (s *Store) InsertAdmin(ctx context.Context, a *models.Admin) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.collection(AdminsCollection).InsertOne(ctx, a)
	return mapError(err)
}

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.collection(UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error) {
	var t models.Translataire
	if err := s.collection(TranslatairesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *Store) GetAdmin(ctx context.Context, id primitive.ObjectID) (*models.Admin, error) {
	var a models.Admin
	if err := s.collection(AdminsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (s *Store) FindTranslataireByCompanyName(ctx context.Context, name string) (*models.Translataire, error) {
	var t models.Translataire
	if err := s.collection(TranslatairesCollection).FindOne(ctx, bson.M{"nomEntreprise": name}).Decode(&t); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *Store) findAccount(ctx context.Context, t models.AccountType, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.collection(accountCollection(t)).FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (s *Store) FindAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID) (*models.Account, error) {
	return s.findAccount(ctx, t, bson.M{"_id": id})
}

func (s *Store) FindAccountByEmail(ctx context.Context, t models.AccountType, email string) (*models.Account, error) {
	return s.findAccount(ctx, t, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Store) findAccountAnyType(ctx context.Context, filter bson.M) (models.AccountType, *models.Account, error) {
	for _, t := range accountTypes {
		a, err := s.findAccount(ctx, t, filter)
		if err == nil {
			return t, a, nil
		}
		if err != store.ErrNotFound {
			return "", nil, err
		}
	}
	return "", nil, store.ErrNotFound
}

func (s *Store) FindAccountByVerificationToken(ctx context.Context, hash string) (models.AccountType, *models.Account, error) {
	if hash == "" {
		return "", nil, store.ErrNotFound
	}
	return s.findAccountAnyType(ctx, bson.M{"verificationToken": hash})
}

func (s *Store) FindAccountByResetToken(ctx context.Context, hash string, now time.Time) (models.AccountType, *models.Account, error) {
	if hash == "" {
		return "", nil, store.ErrNotFound
	}
	return s.findAccountAnyType(ctx, bson.M{
		"resetPasswordToken":   hash,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func accountUpdateDoc(u models.AccountUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.PasswordHash != nil {
		set["password"] = *u.PasswordHash
	}
	if u.GoogleID != nil {
		set["googleId"] = *u.GoogleID
	}
	if u.IsVerified != nil {
		set["isVerified"] = *u.IsVerified
	}
	if u.IsApproved != nil {
		set["isApproved"] = *u.IsApproved
	}
	if u.IsBlocked != nil {
		set["isBlocked"] = *u.IsBlocked
	}
	if u.IsArchived != nil {
		set["isArchived"] = *u.IsArchived
	}
	if u.VerificationTokenHash != nil {
		set["verificationToken"] = *u.VerificationTokenHash
	}
	if u.ResetTokenHash != nil {
		set["resetPasswordToken"] = *u.ResetTokenHash
	}
	if u.ResetTokenExpiresAt != nil {
		set["resetPasswordExpires"] = *u.ResetTokenExpiresAt
	}

	doc := bson.M{"$set": set}
	if u.ClearResetToken {
		delete(set, "resetPasswordToken")
		delete(set, "resetPasswordExpires")
		doc["$unset"] = bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""}
	}
	return doc
}

func (s *Store) UpdateAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID, u models.AccountUpdate) error {
	res, err := s.collection(accountCollection(t)).UpdateByID(ctx, id, accountUpdateDoc(u, time.Now()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID, u models.AccountUpdate) (int64, error) {
	res, err := s.collection(accountCollection(t)).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		accountUpdateDoc(u, time.Now()),
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *Store) DeleteAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID) (int64, error) {
	res, err := s.collection(accountCollection(t)).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func accountFilterDoc(f models.AccountFilter, searchFields ...string) bson.M {
	filter := bson.M{}
	if f.Blocked != nil {
		filter["isBlocked"] = *f.Blocked
	}
	if f.Archived != nil {
		filter["isArchived"] = *f.Archived
	}
	if f.Approved != nil {
		filter["isApproved"] = *f.Approved
	}
	if search := strings.TrimSpace(f.Search); search != "" && len(searchFields) > 0 {
		or := make([]bson.M, 0, len(searchFields))
		for _, field := range searchFields {
			or = append(or, bson.M{field: searchRegex(search)})
		}
		filter["$or"] = or
	}
	return filter
}

func listAccounts[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, page, limit int64) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := coll.Find(ctx, filter, pageOptions(page, limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) ListUsers(ctx context.Context, f models.AccountFilter) ([]models.User, int64, error) {
	filter := accountFilterDoc(f, "email", "nom", "prenom", "entreprise")
	return listAccounts[models.User](ctx, s.collection(UsersCollection), filter, f.Page, f.Limit)
}

func (s *Store) ListTranslataires(ctx context.Context, f models.AccountFilter) ([]models.Translataire, int64, error) {
	filter := accountFilterDoc(f, "email", "nomEntreprise", "ninea")
	return listAccounts[models.Translataire](ctx, s.collection(TranslatairesCollection), filter, f.Page, f.Limit)
}

func (s *Store) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	cursor, err := s.collection(AdminsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	admins := make([]models.Admin, 0)
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

func (s *Store) AdminIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cursor, err := s.collection(AdminsCollection).Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) CountAccounts(ctx context.Context, t models.AccountType, f models.AccountFilter) (int64, error) {
	return s.collection(accountCollection(t)).CountDocuments(ctx, accountFilterDoc(f))
}

func (s *Store) SetTranslataireRating(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error {
	res, err := s.collection(TranslatairesCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"avgRating":    summary.Average,
			"ratingsCount": summary.Count,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
