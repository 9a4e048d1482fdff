package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"foodcart/media"
	"foodcart/models"
	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
)

// GetMenu lists menu items, newest first.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.Cache != nil {
		if data, ok := h.Cache.Get(r.Context()); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		}
	}

	items := h.App.Menu()
	data, err := json.Marshal(items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(r.Context(), data)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// CreateMenuItem accepts either a JSON draft or a multipart form with
// "image" and "video" files.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var (
		draft   models.FoodItemDraft
		uploads []media.Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, (models.MaxItemImages+1)*media.MaxSize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		d, err := draftFromForm(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		draft = d

		closers, ups, err := formUploads(r.MultipartForm)
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		uploads = ups
	} else if err := utils.DecodeJSON(w, r, &draft); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.App.AddMenuItem(r.Context(), draft, uploads)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

func draftFromForm(r *http.Request) (models.FoodItemDraft, error) {
	price, err := utils.ParseFloat(r.FormValue("price"))
	if err != nil {
		return models.FoodItemDraft{}, fmt.Errorf("price must be a number")
	}
	return models.FoodItemDraft{
		Name:        r.FormValue("name"),
		Description: strings.TrimSpace(r.FormValue("description")),
		Size:        strings.TrimSpace(r.FormValue("size")),
		Price:       price,
		Images:      utils.SplitTags(r.FormValue("images")),
		Video:       strings.TrimSpace(r.FormValue("video")),
	}, nil
}

func formUploads(form *multipart.Form) ([]multipart.File, []media.Upload, error) {
	var (
		files   []multipart.File
		uploads []media.Upload
	)
	add := func(key string, kind media.Kind) error {
		for _, hdr := range form.File[key] {
			f, err := hdr.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", hdr.Filename, err)
			}
			files = append(files, f)
			uploads = append(uploads, media.Upload{
				Kind:        kind,
				Name:        hdr.Filename,
				ContentType: hdr.Header.Get("Content-Type"),
				Body:        f,
			})
		}
		return nil
	}
	if err := add("image", media.Photo); err != nil {
		return files, nil, err
	}
	if err := add("video", media.Video); err != nil {
		return files, nil, err
	}
	return files, uploads, nil
}
