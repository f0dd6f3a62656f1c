package services

import (
	// Стандартные библиотеки
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"path/filepath"

	// Внутренние пакеты
	"imageupscaler/internal/storage"

	// Сторонние библиотеки
	"github.com/disintegration/imaging"
)

// Transformer превращает исходник, сохраненный под ключом key в области originals,
// в обработанный файл под тем же ключом в области processed.
// Любая ошибка возвращается значением, паника наружу не выходит.
type Transformer interface {
	Transform(ctx context.Context, key string) error
}

// TransformerFunc позволяет использовать обычную функцию как Transformer.
type TransformerFunc func(ctx context.Context, key string) error

func (f TransformerFunc) Transform(ctx context.Context, key string) error { return f(ctx, key) }

// DefaultScale - во сколько раз увеличиваются обе стороны изображения.
const DefaultScale = 2

// DefaultMaxPixels - предел площади исходника (ширина*высота), около 4096x4096.
// Результат при масштабе 2 - до 64 мегапикселей.
const DefaultMaxPixels int64 = 16 << 20

// ErrImageTooLarge - размеры из заголовка изображения превышают предел.
var ErrImageTooLarge = errors.New("изображение слишком большое")

// LanczosUpscaler - временная реализация обработки: увеличение в Scale раз фильтром Lanczos.
// Место для подключения настоящей модели апскейла.
type LanczosUpscaler struct {
	Blobs storage.BlobStore
	Scale int
	// MaxPixels ограничивает площадь исходника; результат ограничен MaxPixels*Scale*Scale.
	MaxPixels int64
}

// NewLanczosUpscaler возвращает апскейлер с масштабом DefaultScale и пределом DefaultMaxPixels.
func NewLanczosUpscaler(blobs storage.BlobStore) *LanczosUpscaler {
	return &LanczosUpscaler{Blobs: blobs, Scale: DefaultScale, MaxPixels: DefaultMaxPixels}
}

func (u *LanczosUpscaler) Transform(ctx context.Context, key string) (err error) {
	// Паника декодера не должна уронить запрос
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника при обработке %s: %v", key, r)
		}
	}()

	// Формат результата определяется расширением ключа
	format, err := imaging.FormatFromFilename(key)
	if err != nil {
		return fmt.Errorf("неизвестный формат файла %s: %w", key, err)
	}

	src, err := u.Blobs.Open(ctx, storage.Originals, key)
	if err != nil {
		return fmt.Errorf("исходник %s недоступен: %w", key, err)
	}
	defer src.Close()

	// Исходник не больше MAX_UPLOAD_BYTES, читаем целиком: он нужен дважды
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("не удалось прочитать %s: %w", key, err)
	}

	scale := u.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	// Сначала только заголовок: размеры проверяются до выделения памяти под пиксели
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("не удалось прочитать заголовок %s: %w", key, err)
	}
	if err := u.checkSize(cfg.Width, cfg.Height, scale); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("не удалось декодировать %s: %w", key, err)
	}

	// Цветное изображение без прозрачности: альфа-канал накладываем на белый фон
	bounds := img.Bounds()
	opaque := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	opaque = imaging.Overlay(opaque, img, image.Pt(0, 0), 1.0)

	dst := imaging.Resize(opaque, bounds.Dx()*scale, bounds.Dy()*scale, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("не удалось закодировать результат %s: %w", key, err)
	}
	if _, err := u.Blobs.Put(ctx, storage.Processed, key, &buf); err != nil {
		return fmt.Errorf("не удалось сохранить результат %s: %w", key, err)
	}

	log.Printf("Изображение %s обработано: %dx%d -> %dx%d (%s)",
		key, bounds.Dx(), bounds.Dy(), dst.Bounds().Dx(), dst.Bounds().Dy(), filepath.Ext(key))
	return nil
}

// checkSize сравнивает площадь исходника с пределом.
func (u *LanczosUpscaler) checkSize(width, height, scale int) error {
	limit := u.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("некорректные размеры %dx%d", width, height)
	}

	// Считаем в int64: 30000*30000 не помещается в int32.
	// Результат - ровно srcPixels*scale*scale, отдельной проверки не нужно.
	srcPixels := int64(width) * int64(height)
	if srcPixels > limit {
		return fmt.Errorf("%dx%d (результат %dx%d) больше предела %d пикселей: %w",
			width, height, width*scale, height*scale, limit, ErrImageTooLarge)
	}
	return nil
}
