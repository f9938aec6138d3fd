package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinDisputeTitleLength       = 3
	MaxDisputeTitleLength       = 200
	MinDisputeDescriptionLength = 10
	MaxDisputeDescriptionLength = 5000
	MinMessageLength            = 1
	MaxMessageLength            = 5000
	MaxReasonLength             = 1000
	MaxCommentLength            = 2000
	MaxNotesLength              = 2000
	MaxMediaRefs                = 20
	MaxMediaRefLength           = 500
	MaxRooms                    = 50
	MaxRoomNameLength           = 100
	MaxDamageCost               = 100000000.0 // 100 миллионов
)

// MediaPrefix - путь, по которому раздаются загруженные вложения.
const MediaPrefix = "/media/"

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateDisputeTitle проверяет заголовок спора.
func ValidateDisputeTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок спора обязателен")
	}
	return ValidateLength("заголовок спора", title, MinDisputeTitleLength, MaxDisputeTitleLength)
}

// ValidateDisputeDescription проверяет описание спора.
func ValidateDisputeDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание спора обязательно")
	}
	return ValidateLength("описание спора", description, MinDisputeDescriptionLength, MaxDisputeDescriptionLength)
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}

	content = strings.TrimSpace(content)

	if err := ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength); err != nil {
		return err
	}

	return nil
}

// ValidateReason проверяет причину отказа, эскалации или смены статуса.
func ValidateReason(reason string) error {
	return ValidateLength("причина", strings.TrimSpace(reason), 0, MaxReasonLength)
}

// ValidateOptionalText проверяет необязательное текстовое поле.
func ValidateOptionalText(fieldName string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, max)
}

// ValidateMediaRefs проверяет ссылки на вложения: либо загруженный файл (/media/...),
// либо внешний http(s) адрес.
func ValidateMediaRefs(refs []string) error {
	if len(refs) > MaxMediaRefs {
		return fmt.Errorf("количество вложений не может превышать %d", MaxMediaRefs)
	}

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return fmt.Errorf("ссылка на вложение не может быть пустой")
		}
		if err := ValidateLength("ссылка на вложение", ref, 0, MaxMediaRefLength); err != nil {
			return err
		}

		if strings.HasPrefix(ref, MediaPrefix) {
			if strings.Contains(ref, "..") {
				return fmt.Errorf("некорректный путь вложения %q", ref)
			}
			continue
		}

		parsedURL, err := url.Parse(ref)
		if err != nil {
			return fmt.Errorf("некорректный формат URL")
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("вложение должно быть загруженным файлом или ссылкой http(s)")
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("ссылка должна содержать доменное имя")
		}
	}

	return nil
}

// RoomInput - комната акта осмотра в том виде, в каком её видит валидатор.
type RoomInput struct {
	Name       string
	DamageCost float64
}

// ValidateRooms проверяет комнаты акта осмотра.
func ValidateRooms(rooms []RoomInput) error {
	if len(rooms) > MaxRooms {
		return fmt.Errorf("количество комнат не может превышать %d", MaxRooms)
	}

	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		name := strings.TrimSpace(room.Name)
		if err := ValidateLength("название комнаты", name, 0, MaxRoomNameLength); err != nil {
			return err
		}

		// Проверка на дубликаты (без учета регистра)
		key := strings.ToLower(name)
		if name != "" && seen[key] {
			return fmt.Errorf("комната '%s' указана дважды", name)
		}
		seen[key] = true

		if room.DamageCost < 0 || room.DamageCost > MaxDamageCost {
			return fmt.Errorf("стоимость ущерба должна быть от 0 до %.0f", MaxDamageCost)
		}
	}

	return nil
}
