package services

import (
	// Стандартные библиотеки
	"path"
	"regexp"
	"strings"
)

// AllowedExtensions - расширения, которые принимаются на загрузку (без точки, нижний регистр).
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	whitespace          = regexp.MustCompile(`\s+`)
)

// FileExtension возвращает расширение имени файла в нижнем регистре без точки.
// Имя без точки - пустое расширение.
func FileExtension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// AllowedFile - проверка только по имени файла, содержимое не смотрится.
func AllowedFile(filename string) bool {
	return AllowedExtensions[FileExtension(filename)]
}

// SecureFilename очищает имя файла от клиента: убирает путь, оставляет только
// [A-Za-z0-9._-], пробелы превращает в '_', обрезает '.' и '_' по краям.
// Если от основы имени ничего не осталось, подставляется "upload" с исходным расширением.
func SecureFilename(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	name = path.Base(name)
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	ext := FileExtension(filename)
	if name == "" || strings.EqualFold(name, ext) {
		if ext == "" {
			return "upload"
		}
		return "upload." + ext
	}
	return name
}
