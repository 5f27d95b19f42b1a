package sqlinline

const QSelectCharacterProfile = `--sql 3b9f1d7e-52a4-4c0b-8d6e-0f2a7c91b4e5
select id, name, coalesce(description, ''), coalesce(traits, '[]'::jsonb),
       coalesce(image_url, ''), coalesce(thumbnail_url, '')
from character_profiles
where id = $1::text
limit 1;
`

const QUpsertCharacterProfile = `--sql c4e27a90-1b6d-4f38-a5c2-7d90e8b3f614
insert into character_profiles (id, name, description, traits, image_url, thumbnail_url, created_at, updated_at)
values ($1::text, $2::text, nullif($3::text, ''), coalesce($4::jsonb, '[]'::jsonb), nullif($5::text, ''), nullif($6::text, ''), now(), now())
on conflict (id) do update set
    name = excluded.name,
    description = excluded.description,
    traits = excluded.traits,
    image_url = excluded.image_url,
    thumbnail_url = excluded.thumbnail_url,
    updated_at = now();
`
