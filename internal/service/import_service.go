package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pokerjest/animestream/internal/anilist"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/parser"
	"github.com/pokerjest/animestream/internal/tmdb"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProviderTMDB    = "tmdb"
	ProviderAniList = "anilist"

	maxImportedCast    = 15
	seasonFetchWorkers = 4
	episodeBatchSize   = 100
)

type TMDBProvider interface {
	SearchTV(ctx context.Context, query string, page int) (*tmdb.SearchResponse, error)
	DiscoverAnime(ctx context.Context, page int) (*tmdb.SearchResponse, error)
	GetTVDetails(ctx context.Context, id int) (*tmdb.TVDetails, error)
	GetSeasonDetails(ctx context.Context, id, season int) (*tmdb.SeasonDetails, error)
}

type AniListProvider interface {
	SearchAnime(ctx context.Context, query string, page, perPage int) (*anilist.Page, error)
	Trending(ctx context.Context, page, perPage int) (*anilist.Page, error)
	GetAnimeDetails(ctx context.Context, id int) (*anilist.Media, error)
}

// ImportCandidate is a provider search hit, annotated with its local state.
type ImportCandidate struct {
	Provider       string  `json:"provider"`
	ExternalID     int     `json:"external_id"`
	Title          string  `json:"title"`
	OriginalTitle  string  `json:"original_title"`
	Overview       string  `json:"overview,omitempty"`
	PosterURL      string  `json:"poster_url"`
	Year           int     `json:"year"`
	Score          float64 `json:"score"`
	Imported       bool    `json:"imported"`
	AnimeID        uint    `json:"anime_id,omitempty"`
	SimilarAnimeID uint    `json:"similar_anime_id,omitempty"`
}

type CandidatePage struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Results    []ImportCandidate `json:"results"`
}

type ImportService struct {
	DB         *gorm.DB
	Bus        event.Bus
	TMDB       TMDBProvider
	AniList    AniListProvider
	Catalog    *AnimeService
	Categories *CategoryService
}

// NewImportService wires the providers. A nil TMDB client disables TMDB imports.
func NewImportService(db *gorm.DB, bus event.Bus, tmdbClient *tmdb.Client, anilistClient *anilist.Client) *ImportService {
	s := &ImportService{
		DB:         db,
		Bus:        bus,
		Catalog:    NewAnimeService(db, bus),
		Categories: NewCategoryService(db, bus),
	}
	if tmdbClient != nil {
		s.TMDB = tmdbClient
	}
	if anilistClient != nil {
		s.AniList = anilistClient
	}
	return s
}

// SearchTMDB searches TMDB. Season markers are dropped from the query since TMDB files
// every season under one show.
func (s *ImportService) SearchTMDB(ctx context.Context, query string, page int) (*CandidatePage, error) {
	if s.TMDB == nil {
		return nil, ErrProviderDisabled
	}
	query = parser.CleanTitle(query)
	if query == "" {
		return nil, invalid("query is required")
	}
	res, err := s.TMDB.SearchTV(ctx, query, page)
	if err != nil {
		return nil, err
	}
	return s.annotateTMDB(res)
}

func (s *ImportService) DiscoverTMDB(ctx context.Context, page int) (*CandidatePage, error) {
	if s.TMDB == nil {
		return nil, ErrProviderDisabled
	}
	res, err := s.TMDB.DiscoverAnime(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.annotateTMDB(res)
}

func (s *ImportService) SearchAniList(ctx context.Context, query string, page, perPage int) (*CandidatePage, error) {
	if s.AniList == nil {
		return nil, ErrProviderDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("query is required")
	}
	res, err := s.AniList.SearchAnime(ctx, query, page, perPage)
	if err != nil {
		return nil, err
	}
	return s.annotateAniList(res)
}

func (s *ImportService) TrendingAniList(ctx context.Context, page, perPage int) (*CandidatePage, error) {
	if s.AniList == nil {
		return nil, ErrProviderDisabled
	}
	res, err := s.AniList.Trending(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	return s.annotateAniList(res)
}

func (s *ImportService) annotateTMDB(res *tmdb.SearchResponse) (*CandidatePage, error) {
	out := &CandidatePage{Page: res.Page, TotalPages: res.TotalPages}
	out.Results = lo.Map(res.Results, func(show tmdb.TVShow, _ int) ImportCandidate {
		return ImportCandidate{
			Provider:      ProviderTMDB,
			ExternalID:    show.ID,
			Title:         show.Name,
			OriginalTitle: show.OriginalName,
			Overview:      show.Overview,
			PosterURL:     show.PosterPath,
			Year:          show.Year(),
			Score:         show.VoteAverage,
		}
	})
	return out, s.annotate("tmdb_id", out.Results)
}

func (s *ImportService) annotateAniList(res *anilist.Page) (*CandidatePage, error) {
	out := &CandidatePage{Page: res.PageInfo.CurrentPage, TotalPages: res.PageInfo.LastPage}
	out.Results = lo.Map(res.Media, func(m anilist.Media, _ int) ImportCandidate {
		poster := m.CoverImage.ExtraLarge
		if poster == "" {
			poster = m.CoverImage.Large
		}
		return ImportCandidate{
			Provider:      ProviderAniList,
			ExternalID:    m.ID,
			Title:         m.Title.Preferred(),
			OriginalTitle: m.Title.Native,
			PosterURL:     poster,
			Year:          m.Year(),
			Score:         float64(m.AverageScore) / 10,
		}
	})
	return out, s.annotate("anilist_id", out.Results)
}

type externalRow struct {
	ID         uint
	ExternalID int
}

// annotate marks candidates that already exist locally, either by provider id or by title.
func (s *ImportService) annotate(column string, cands []ImportCandidate) error {
	if len(cands) == 0 {
		return nil
	}
	ids := lo.Map(cands, func(c ImportCandidate, _ int) int { return c.ExternalID })

	var rows []externalRow
	err := s.DB.Model(&model.Anime{}).
		Select("id, "+column+" AS external_id").
		Where(column+" IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return err
	}
	byExternal := lo.SliceToMap(rows, func(r externalRow) (int, uint) { return r.ExternalID, r.ID })

	for i := range cands {
		if id, ok := byExternal[cands[i].ExternalID]; ok {
			cands[i].Imported = true
			cands[i].AnimeID = id
			continue
		}
		slug := parser.Slugify(parser.CleanTitle(cands[i].Title))
		if slug == "" {
			continue
		}
		var similar model.Anime
		if err := s.DB.Select("id", "title").Where("slug = ?", slug).Take(&similar).Error; err == nil &&
			parser.SameTitle(similar.Title, cands[i].Title) {
			cands[i].SimilarAnimeID = similar.ID
		}
	}
	return nil
}

// ImportTMDB creates an anime from a TMDB show. Remote data is fetched first and then
// written in a single transaction, so a failure leaves nothing behind.
func (s *ImportService) ImportTMDB(ctx context.Context, tmdbID int, withEpisodes bool) (*model.Anime, error) {
	if s.TMDB == nil {
		return nil, ErrProviderDisabled
	}
	if existing, err := s.findImported("tmdb_id", tmdbID); err != nil || existing != nil {
		if existing != nil {
			return existing, fmt.Errorf("tmdb %d %w", tmdbID, ErrAlreadyImported)
		}
		return nil, err
	}

	progress := event.ImportProgress{Provider: ProviderTMDB, ExternalID: tmdbID}
	s.progress(progress, "fetching details")

	show, err := withRetry(ctx, func() (*tmdb.TVDetails, error) { return s.TMDB.GetTVDetails(ctx, tmdbID) })
	if err != nil {
		return nil, s.fail(progress, mapProviderError(err, "tmdb show"))
	}
	progress.Title = show.Name

	var seasons []*tmdb.SeasonDetails
	if withEpisodes {
		s.progress(progress, "fetching episodes")
		if seasons, err = s.fetchSeasons(ctx, show); err != nil {
			return nil, s.fail(progress, err)
		}
	}

	anime := animeFromTMDB(show)
	episodes := episodesFromTMDB(show, seasons)
	genres := lo.Map(show.Genres, func(g tmdb.Genre, _ int) string { return g.Name })

	s.progress(progress, "saving")
	if err := s.save(anime, genres, episodes); err != nil {
		return nil, s.fail(progress, err)
	}

	progress.AnimeID = anime.ID
	s.complete(progress, len(episodes))
	return s.Catalog.Get(anime.ID)
}

// fetchSeasons loads every regular season concurrently. Season 0 holds specials and is skipped.
func (s *ImportService) fetchSeasons(ctx context.Context, show *tmdb.TVDetails) ([]*tmdb.SeasonDetails, error) {
	regular := lo.Filter(show.Seasons, func(season tmdb.Season, _ int) bool {
		return season.SeasonNumber > 0
	})
	results := make([]*tmdb.SeasonDetails, len(regular))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seasonFetchWorkers)
	for i, season := range regular {
		i, season := i, season
		g.Go(func() error {
			details, err := withRetry(gctx, func() (*tmdb.SeasonDetails, error) {
				return s.TMDB.GetSeasonDetails(gctx, show.ID, season.SeasonNumber)
			})
			if err != nil {
				return fmt.Errorf("season %d: %w", season.SeasonNumber, err)
			}
			results[i] = details
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ImportAniList creates an anime from an AniList media entry. Episodes are placeholders
// numbered 1..N since AniList does not list them individually.
func (s *ImportService) ImportAniList(ctx context.Context, anilistID int, withEpisodes bool) (*model.Anime, error) {
	if s.AniList == nil {
		return nil, ErrProviderDisabled
	}
	if existing, err := s.findImported("anilist_id", anilistID); err != nil || existing != nil {
		if existing != nil {
			return existing, fmt.Errorf("anilist %d %w", anilistID, ErrAlreadyImported)
		}
		return nil, err
	}

	progress := event.ImportProgress{Provider: ProviderAniList, ExternalID: anilistID}
	s.progress(progress, "fetching details")

	media, err := withRetry(ctx, func() (*anilist.Media, error) { return s.AniList.GetAnimeDetails(ctx, anilistID) })
	if err != nil {
		return nil, s.fail(progress, mapProviderError(err, "anilist media"))
	}
	progress.Title = media.Title.Preferred()

	anime := animeFromAniList(media)
	var episodes []model.Episode
	if withEpisodes {
		episodes = placeholderEpisodes(media)
	}

	s.progress(progress, "saving")
	if err := s.save(anime, media.Genres, episodes); err != nil {
		return nil, s.fail(progress, err)
	}

	progress.AnimeID = anime.ID
	s.complete(progress, len(episodes))
	return s.Catalog.Get(anime.ID)
}

func (s *ImportService) findImported(column string, externalID int) (*model.Anime, error) {
	var existing model.Anime
	err := s.DB.Where(column+" = ?", externalID).Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if isNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// save writes the anime and everything attached to it in one transaction.
func (s *ImportService) save(anime *model.Anime, genres []string, episodes []model.Episode) error {
	cast := anime.Cast
	trailers := anime.Trailers
	anime.Cast, anime.Trailers = nil, nil

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, anime.Title, 0)
		if err != nil {
			return err
		}
		anime.Slug = slug
		if err := tx.Omit("Categories", "Episodes", "Cast", "Trailers").Create(anime).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%s %w", anime.Title, ErrAlreadyImported)
			}
			return err
		}

		cats, err := s.Categories.EnsureByNames(tx, genres)
		if err != nil {
			return err
		}
		if len(cats) > 0 {
			if err := tx.Model(anime).Association("Categories").Append(cats); err != nil {
				return err
			}
		}

		for i := range cast {
			cast[i].AnimeID = anime.ID
		}
		if len(cast) > 0 {
			if err := tx.Create(&cast).Error; err != nil {
				return err
			}
		}
		for i := range trailers {
			trailers[i].AnimeID = anime.ID
		}
		if len(trailers) > 0 {
			if err := tx.Create(&trailers).Error; err != nil {
				return err
			}
		}

		for i := range episodes {
			episodes[i].AnimeID = anime.ID
		}
		if len(episodes) > 0 {
			if err := tx.Omit("Anime", "Sources", "Subtitles").CreateInBatches(&episodes, episodeBatchSize).Error; err != nil {
				return err
			}
			return bumpTotalEpisodes(tx, anime)
		}
		return nil
	})
	if err != nil {
		anime.ID = 0
		return err
	}
	return nil
}

// Refresh re-reads provider data for an imported anime and updates its descriptive fields.
// Episodes, categories and user data are left alone.
func (s *ImportService) Refresh(ctx context.Context, animeID uint) (*model.Anime, error) {
	var anime model.Anime
	if err := s.DB.First(&anime, animeID).Error; err != nil {
		return nil, notFound(err, "anime")
	}

	var fresh *model.Anime
	switch {
	case anime.TMDBID != nil && s.TMDB != nil:
		show, err := withRetry(ctx, func() (*tmdb.TVDetails, error) { return s.TMDB.GetTVDetails(ctx, *anime.TMDBID) })
		if err != nil {
			return nil, mapProviderError(err, "tmdb show")
		}
		fresh = animeFromTMDB(show)
	case anime.AniListID != nil && s.AniList != nil:
		media, err := withRetry(ctx, func() (*anilist.Media, error) { return s.AniList.GetAnimeDetails(ctx, *anime.AniListID) })
		if err != nil {
			return nil, mapProviderError(err, "anilist media")
		}
		fresh = animeFromAniList(media)
	case anime.TMDBID == nil && anime.AniListID == nil:
		return nil, invalid("anime %d was not imported from a provider", animeID)
	default:
		return nil, ErrProviderDisabled
	}

	updates := map[string]interface{}{
		"status": fresh.Status,
	}
	if fresh.Synopsis != "" {
		updates["synopsis"] = fresh.Synopsis
	}
	if fresh.PosterURL != "" {
		updates["poster_url"] = fresh.PosterURL
	}
	if fresh.BannerURL != "" {
		updates["banner_url"] = fresh.BannerURL
	}
	if fresh.TotalEpisodes > anime.TotalEpisodes {
		updates["total_episodes"] = fresh.TotalEpisodes
	}
	if err := s.DB.Model(&anime).Updates(updates).Error; err != nil {
		return nil, err
	}

	if s.Bus != nil {
		s.Bus.Publish(event.EventCatalogChanged, event.CatalogChange{
			Entity: "anime", Action: "refreshed", ID: anime.ID, Title: anime.Title,
		})
	}
	return s.Catalog.Get(anime.ID)
}

// RefreshAll refreshes every imported anime one at a time and returns how many succeeded.
// Failures are logged and skipped.
func (s *ImportService) RefreshAll(ctx context.Context) (int, error) {
	var ids []uint
	err := s.DB.Model(&model.Anime{}).
		Where("tmdb_id IS NOT NULL OR anilist_id IS NOT NULL").
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if _, err := s.Refresh(ctx, id); err != nil {
			logger.FromCtx(ctx).Warn("refresh failed", zap.Uint("anime_id", id), zap.Error(err))
			continue
		}
		ok++
	}
	return ok, nil
}

func (s *ImportService) progress(p event.ImportProgress, step string) {
	p.Step = step
	logger.L().Info("import progress", zap.String("provider", p.Provider), zap.Int("id", p.ExternalID), zap.String("step", step))
	if s.Bus != nil {
		s.Bus.Publish(event.EventImportProgress, p)
	}
}

func (s *ImportService) complete(p event.ImportProgress, episodes int) {
	p.Step = fmt.Sprintf("imported with %d episodes", episodes)
	logger.L().Info("import complete", zap.String("provider", p.Provider), zap.Int("id", p.ExternalID),
		zap.Uint("anime_id", p.AnimeID), zap.Int("episodes", episodes))
	if s.Bus != nil {
		s.Bus.Publish(event.EventImportComplete, p)
	}
}

func (s *ImportService) fail(p event.ImportProgress, err error) error {
	p.Step = "failed"
	p.Error = err.Error()
	logger.L().Error("import failed", zap.String("provider", p.Provider), zap.Int("id", p.ExternalID), zap.Error(err))
	if s.Bus != nil {
		s.Bus.Publish(event.EventImportFailed, p)
	}
	return err
}

const retryAttempts = 3

var (
	retryBackoff  = 500 * time.Millisecond
	maxRetryAfter = 30 * time.Second
)

// withRetry retries transient provider failures, waiting at least as long as a Retry-After hint.
// Client errors such as 404 are returned at once.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < retryAttempts; i++ {
		if i > 0 {
			wait := time.Duration(i) * retryBackoff
			if hint := retryAfter(err); hint > wait {
				wait = min(hint, maxRetryAfter)
			}
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(wait):
			}
		}
		result, err = op()
		if err == nil || isPermanent(err) || ctx.Err() != nil {
			return result, err
		}
	}
	return result, err
}

// isPermanent reports provider answers that repeating the request cannot change.
func isPermanent(err error) bool {
	var se *tmdb.StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	var ge *anilist.GraphQLError
	if errors.As(err, &ge) {
		return ge.Status != 0 && !ge.Temporary()
	}
	return false
}

func retryAfter(err error) time.Duration {
	var se *tmdb.StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	var ge *anilist.GraphQLError
	if errors.As(err, &ge) {
		return ge.RetryAfter
	}
	return 0
}

func mapProviderError(err error, what string) error {
	var se *tmdb.StatusError
	if errors.As(err, &se) && se.NotFound() {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	var ge *anilist.GraphQLError
	if errors.As(err, &ge) && ge.NotFound() {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return err
}

func animeFromTMDB(show *tmdb.TVDetails) *model.Anime {
	tmdbID := show.ID
	a := &model.Anime{
		Title:         show.Name,
		TitleEnglish:  show.Name,
		TitleNative:   show.OriginalName,
		Synopsis:      show.Overview,
		PosterURL:     show.PosterPath,
		BannerURL:     show.BackdropPath,
		Status:        tmdbStatus(show.Status),
		Format:        model.FormatTV,
		ReleaseYear:   show.Year(),
		Season:        seasonOf(show.FirstAirDate),
		TotalEpisodes: show.NumberOfEpisodes,
		TMDBID:        &tmdbID,
	}
	if a.Title == "" {
		a.Title = show.OriginalName
	}
	if len(show.ProductionCompanies) > 0 {
		a.Studio = show.ProductionCompanies[0].Name
	} else if len(show.Networks) > 0 {
		a.Studio = show.Networks[0].Name
	}

	credits := make([]tmdb.CastCredit, len(show.Credits.Cast))
	copy(credits, show.Credits.Cast)
	sort.SliceStable(credits, func(i, j int) bool { return credits[i].Order < credits[j].Order })
	if len(credits) > maxImportedCast {
		credits = credits[:maxImportedCast]
	}
	for i, c := range credits {
		a.Cast = append(a.Cast, model.CastMember{
			Name:        c.Name,
			Character:   c.Character,
			Role:        "voice",
			ImageURL:    c.ProfilePath,
			VoiceActor:  c.Name,
			DisplayRank: i,
		})
	}

	for _, v := range show.Videos.Results {
		if !strings.EqualFold(v.Site, "YouTube") || (v.Type != "Trailer" && v.Type != "Teaser") {
			continue
		}
		a.Trailers = append(a.Trailers, model.Trailer{
			Title: v.Name,
			Site:  "youtube",
			Key:   v.Key,
			URL:   "https://www.youtube.com/watch?v=" + v.Key,
		})
	}
	return a
}

func episodesFromTMDB(show *tmdb.TVDetails, seasons []*tmdb.SeasonDetails) []model.Episode {
	runtime := 0
	if len(show.EpisodeRunTime) > 0 {
		runtime = show.EpisodeRunTime[0]
	}

	var out []model.Episode
	for _, season := range seasons {
		if season == nil {
			continue
		}
		for _, e := range season.Episodes {
			if e.EpisodeNumber <= 0 {
				continue
			}
			minutes := e.Runtime
			if minutes == 0 {
				minutes = runtime
			}
			seasonNumber := e.SeasonNumber
			if seasonNumber == 0 {
				seasonNumber = season.SeasonNumber
			}
			out = append(out, model.Episode{
				SeasonNumber: seasonNumber,
				Number:       e.EpisodeNumber,
				Title:        e.Name,
				Synopsis:     e.Overview,
				ThumbnailURL: e.StillPath,
				Duration:     minutes * 60,
				AirDate:      parseDate(e.AirDate),
			})
		}
	}
	return lo.UniqBy(out, func(e model.Episode) [2]int { return [2]int{e.SeasonNumber, e.Number} })
}

func animeFromAniList(m *anilist.Media) *model.Anime {
	anilistID := m.ID
	poster := m.CoverImage.ExtraLarge
	if poster == "" {
		poster = m.CoverImage.Large
	}
	a := &model.Anime{
		Title:         m.Title.Preferred(),
		TitleEnglish:  m.Title.English,
		TitleNative:   m.Title.Native,
		Synopsis:      parser.StripHTML(m.Description),
		PosterURL:     poster,
		BannerURL:     m.BannerImage,
		Status:        anilistStatus(m.Status),
		Format:        anilistFormat(m.Format),
		ReleaseYear:   m.Year(),
		Season:        strings.ToLower(m.Season),
		TotalEpisodes: m.Episodes,
		Studio:        m.MainStudio(),
		AniListID:     &anilistID,
		Synonyms:      datatypes.NewJSONSlice(lo.Uniq(m.Synonyms)),
	}
	if a.TotalEpisodes == 0 && m.NextAiringEpisode != nil {
		a.TotalEpisodes = m.NextAiringEpisode.Episode - 1
	}

	for i, edge := range m.Characters.Edges {
		if i >= maxImportedCast {
			break
		}
		member := model.CastMember{
			Name:        edge.Node.Name.Full,
			Character:   edge.Node.Name.Full,
			Role:        strings.ToLower(edge.Role),
			ImageURL:    edge.Node.Image.Large,
			DisplayRank: i,
		}
		if len(edge.VoiceActors) > 0 {
			va := edge.VoiceActors[0]
			member.Name = va.Name.Full
			member.VoiceActor = va.Name.Full
		}
		a.Cast = append(a.Cast, member)
	}

	if t := m.Trailer; t != nil && t.ID != "" {
		trailer := model.Trailer{Title: "Trailer", Site: strings.ToLower(t.Site), Key: t.ID}
		switch trailer.Site {
		case "youtube":
			trailer.URL = "https://www.youtube.com/watch?v=" + t.ID
		case "dailymotion":
			trailer.URL = "https://www.dailymotion.com/video/" + t.ID
		}
		if trailer.URL != "" {
			a.Trailers = append(a.Trailers, trailer)
		}
	}
	return a
}

func placeholderEpisodes(m *anilist.Media) []model.Episode {
	count := m.Episodes
	if count == 0 && m.NextAiringEpisode != nil {
		count = m.NextAiringEpisode.Episode - 1
	}
	out := make([]model.Episode, 0, max(count, 0))
	for i := 1; i <= count; i++ {
		out = append(out, model.Episode{
			SeasonNumber: 1,
			Number:       i,
			Title:        fmt.Sprintf("Episode %d", i),
			Duration:     m.Duration * 60,
		})
	}
	return out
}

func tmdbStatus(s string) string {
	switch s {
	case "Ended", "Canceled":
		return model.StatusCompleted
	case "Planned", "Pilot":
		return model.StatusUpcoming
	default:
		return model.StatusOngoing
	}
}

func anilistStatus(s string) string {
	switch s {
	case "FINISHED", "CANCELLED":
		return model.StatusCompleted
	case "NOT_YET_RELEASED":
		return model.StatusUpcoming
	default:
		return model.StatusOngoing
	}
}

func anilistFormat(f string) string {
	switch f {
	case "MOVIE":
		return model.FormatMovie
	case "OVA":
		return model.FormatOVA
	case "ONA":
		return model.FormatONA
	case "SPECIAL", "MUSIC":
		return model.FormatSpecial
	default:
		return model.FormatTV
	}
}

// seasonOf maps an ISO air date onto the broadcast season.
func seasonOf(date string) string {
	t := parseDate(date)
	if t == nil {
		return ""
	}
	switch t.Month() {
	case time.January, time.February, time.March:
		return "winter"
	case time.April, time.May, time.June:
		return "spring"
	case time.July, time.August, time.September:
		return "summer"
	default:
		return "fall"
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
