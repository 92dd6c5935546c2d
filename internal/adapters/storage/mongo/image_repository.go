package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

type imageDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	URL       string             `bson:"url"`
	Path      string             `bson:"path,omitempty"`
	Category  string             `bson:"category"`
	Anime     *string            `bson:"anime"`
	NSFW      bool               `bson:"nsfw"`
	Character *string            `bson:"character"`
	Tags      []string           `bson:"tags"`
}

func (d imageDocument) image() domain.Image {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Image{
		ID:        d.ID.Hex(),
		URL:       d.URL,
		Path:      d.Path,
		Category:  d.Category,
		Anime:     d.Anime,
		NSFW:      d.NSFW,
		Character: d.Character,
		Tags:      tags,
	}
}

func newImageDocument(img domain.Image) imageDocument {
	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	return imageDocument{
		URL:       img.URL,
		Path:      img.Path,
		Category:  img.Category,
		Anime:     img.Anime,
		NSFW:      img.NSFW,
		Character: img.Character,
		Tags:      tags,
	}
}

type ImageRepository struct {
	coll *mongo.Collection
}

var _ ports.ImageRepository = (*ImageRepository)(nil)

func NewImageRepository(coll *mongo.Collection) *ImageRepository {
	return &ImageRepository{coll: coll}
}

// filterQuery translates an ImageFilter. Tags match when any of them is
// present on the image.
func filterQuery(f domain.ImageFilter) bson.M {
	q := bson.M{}
	if f.NSFWSet {
		q["nsfw"] = f.NSFW
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Anime != "" {
		q["anime"] = f.Anime
	}
	if f.Character != "" {
		q["character"] = f.Character
	}
	if len(f.Tags) > 0 {
		q["tags"] = bson.M{"$in": f.Tags}
	}
	return q
}

func updateDocument(u domain.ImageUpdate) bson.M {
	set := bson.M{}
	if u.URL != nil {
		set["url"] = *u.URL
	}
	if u.Path != nil {
		set["path"] = *u.Path
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Anime != nil {
		set["anime"] = *u.Anime
	}
	if u.NSFW != nil {
		set["nsfw"] = *u.NSFW
	}
	if u.Character != nil {
		set["character"] = *u.Character
	}
	if u.Tags != nil {
		set["tags"] = *u.Tags
	}
	return bson.M{"$set": set}
}

func samplePipeline(f domain.ImageFilter, size int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: filterQuery(f)}},
		{{Key: "$sample", Value: bson.M{"size": size}}},
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid image id", domain.ErrInvalidInput)
	}
	return oid, nil
}

func (r *ImageRepository) Count(ctx context.Context, filter domain.ImageFilter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, filterQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (r *ImageRepository) CountAll(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (r *ImageRepository) Find(ctx context.Context, filter domain.ImageFilter, page domain.PageRequest) ([]domain.Image, error) {
	opts := options.Find().
		SetSkip(page.Skip()).
		SetLimit(page.Size).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, filterQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	return decodeImages(ctx, cur)
}

func (r *ImageRepository) Sample(ctx context.Context, filter domain.ImageFilter, size int64) ([]domain.Image, error) {
	cur, err := r.coll.Aggregate(ctx, samplePipeline(filter, size))
	if err != nil {
		return nil, fmt.Errorf("sample images: %w", err)
	}
	return decodeImages(ctx, cur)
}

func decodeImages(ctx context.Context, cur *mongo.Cursor) ([]domain.Image, error) {
	defer cur.Close(ctx)

	images := []domain.Image{}
	for cur.Next(ctx) {
		var doc imageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		images = append(images, doc.image())
	}
	return images, cur.Err()
}

func (r *ImageRepository) Get(ctx context.Context, id string) (domain.Image, error) {
	oid, err := parseID(id)
	if err != nil {
		return domain.Image{}, err
	}

	var doc imageDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Image{}, fmt.Errorf("%w: image not found", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Image{}, fmt.Errorf("find image: %w", err)
	}
	return doc.image(), nil
}

func (r *ImageRepository) Insert(ctx context.Context, image domain.Image) (domain.Image, error) {
	res, err := r.coll.InsertOne(ctx, newImageDocument(image))
	if err != nil {
		return domain.Image{}, fmt.Errorf("error inserting the image into the database: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.Image{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	image.ID = oid.Hex()
	if image.Tags == nil {
		image.Tags = []string{}
	}
	return image, nil
}

func (r *ImageRepository) Update(ctx context.Context, id string, update domain.ImageUpdate) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, updateDocument(update))
	if err != nil {
		return false, fmt.Errorf("update image: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, fmt.Errorf("%w: image not found", domain.ErrNotFound)
	}
	return res.ModifiedCount > 0, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("delete image: %w", err)
	}
	return res.DeletedCount > 0, nil
}
